package detect

// DrainEvent is a reconstructed interval during which liquid was removed from
// a vessel, net of the production that continued while it drained.
//
// TotalRemoved = LevelDrop + PotionGenerated always holds: the observed net
// drop plus the production the drain masked.
type DrainEvent struct {
	VesselID        string  `json:"vesselId"`
	StartTime       string  `json:"startTime"`
	EndTime         string  `json:"endTime"`
	DurationMinutes float64 `json:"duration"`
	StartLevel      float64 `json:"startLevel"`
	EndLevel        float64 `json:"endLevel"`
	LevelDrop       float64 `json:"levelDrop"`
	PotionGenerated float64 `json:"potionGeneratedDuringDrain"`
	TotalRemoved    float64 `json:"totalPotionRemoved"`
	FillRate        float64 `json:"estimatedFillRate"`
	DrainRate       float64 `json:"estimatedDrainRate"`
}
