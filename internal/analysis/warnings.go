package analysis

// Warnings collects non-fatal findings and assumptions made during one
// analysis run. They surface to the caller separately from hard errors.
type Warnings struct {
	Warnings    []string `json:"warnings"`
	Assumptions []string `json:"assumptions"`
}

func NewWarnings() *Warnings {
	return &Warnings{}
}

func (w *Warnings) AddWarning(msg string) {
	w.Warnings = append(w.Warnings, msg)
}

func (w *Warnings) AddAssumption(msg string) {
	w.Assumptions = append(w.Assumptions, msg)
}

func (w *Warnings) HasWarnings() bool {
	return len(w.Warnings) > 0 || len(w.Assumptions) > 0
}
