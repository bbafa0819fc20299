package types

// NodeMessage associates a message (typically a traceback) with the dotted
// fullname of the test object it belongs to.
type NodeMessage struct {
	Fullname string `json:"fullname"`
	Message  string `json:"message"`
}

// BatchInfo is the batch metadata reported by the backend once the batch has
// been admitted. UnitMethods maps each test unit to the ordered list of method
// fullnames it contains; results for a unit are interpreted against that list.
type BatchInfo struct {
	NumUnits    int                 `json:"num_units"`
	UnitMethods map[string][]string `json:"test_unit_methods"`
	LoadErrors  []NodeMessage       `json:"load_errors"`
}

// UnitResult is the outcome of running one test unit. Methods listed in
// Errors errored, methods listed in Failures failed an assertion; every other
// method of the unit passed. Output is the free-text output of the unit run.
type UnitResult struct {
	Fullname   string        `json:"fullname"`
	LoadErrors []NodeMessage `json:"load_errors"`
	Errors     []NodeMessage `json:"errors"`
	Failures   []NodeMessage `json:"failures"`
	Output     string        `json:"output"`
}

// BatchStart is the response to starting a batch. The backend may answer with
// just a batch id, in which case the caller polls for Info and results, or
// with a combined response that already carries the metadata and some or all
// results.
type BatchStart struct {
	BatchID string       `json:"batch_id"`
	Info    *BatchInfo   `json:"batch_info,omitempty"`
	Results []UnitResult `json:"results,omitempty"`
}

// MethodList is the response to a method-discovery request, used once at
// startup to populate the dashboard before any run.
type MethodList struct {
	MethodNames []string      `json:"method_names"`
	LoadErrors  []NodeMessage `json:"load_errors"`
}
