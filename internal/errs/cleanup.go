package errs

// CleanupResult records the outcome of one best-effort teardown step.
type CleanupResult struct {
	Step string
	Err  error
}

func (r CleanupResult) OK() bool { return r.Err == nil }

// CleanupReport collects step outcomes so callers and tests can see how much
// of a teardown actually succeeded instead of losing swallowed errors.
type CleanupReport struct {
	Results []CleanupResult
}

func (r *CleanupReport) Record(step string, err error) {
	r.Results = append(r.Results, CleanupResult{Step: step, Err: err})
}

func (r *CleanupReport) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.OK() {
			n++
		}
	}
	return n
}

func (r *CleanupReport) Failed() []CleanupResult {
	var failed []CleanupResult
	for _, res := range r.Results {
		if !res.OK() {
			failed = append(failed, res)
		}
	}
	return failed
}
