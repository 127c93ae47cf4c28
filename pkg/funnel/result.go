package funnel

// StepResult holds the outcome for one step
type StepResult struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	EventName string `json:"event_name"`
	// Count is the number of distinct subjects that reached the step
	Count int `json:"count"`
	// ConversionRate is Count relative to the first step
	ConversionRate float64 `json:"conversion_rate"`
	// DropOff is the number of subjects lost since the previous step
	DropOff int `json:"drop_off"`
	// DropOffRate is DropOff relative to the previous step
	DropOffRate float64 `json:"drop_off_rate"`
}

// Result is the outcome of a funnel computation
type Result struct {
	Name  string       `json:"name"`
	Steps []StepResult `json:"steps"`
	// Entered is the number of subjects that matched step 0
	Entered int `json:"entered"`
	// Completed is the number of subjects that reached the final step
	Completed int   `json:"completed"`
	Window    int64 `json:"window,omitempty"`
}

func newResult(spec Spec, counts []int) *Result {
	res := &Result{
		Name:   spec.Name,
		Steps:  make([]StepResult, len(counts)),
		Window: spec.Window,
	}
	if len(counts) == 0 {
		return res
	}

	res.Entered = counts[0]
	res.Completed = counts[len(counts)-1]
	for i, c := range counts {
		sr := StepResult{
			Index:          i,
			Name:           spec.Steps[i].Label(),
			EventName:      spec.Steps[i].EventName,
			Count:          c,
			ConversionRate: ratio(c, counts[0]),
		}
		if i > 0 {
			sr.DropOff = counts[i-1] - c
			sr.DropOffRate = ratio(sr.DropOff, counts[i-1])
		}
		res.Steps[i] = sr
	}
	return res
}

// ratio returns n/d, or 0 when d is 0
func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

// Counts returns the per-step subject counts
func (r *Result) Counts() []int {
	out := make([]int, len(r.Steps))
	for i, s := range r.Steps {
		out[i] = s.Count
	}
	return out
}

// ConversionRates returns the per-step conversion rates
func (r *Result) ConversionRates() []float64 {
	out := make([]float64, len(r.Steps))
	for i, s := range r.Steps {
		out[i] = s.ConversionRate
	}
	return out
}

// ConversionRate is the share of entered subjects that completed the funnel
func (r *Result) ConversionRate() float64 {
	return ratio(r.Completed, r.Entered)
}
