package models

// DistillBundle is the five-list extraction returned by the distillation
// prompt. Unknown keys in the model response are dropped during decoding.
type DistillBundle struct {
	Decisions     []MemoryPayload `json:"decisions"`
	Constraints   []MemoryPayload `json:"constraints"`
	Mistakes      []MemoryPayload `json:"mistakes"`
	Assumptions   []MemoryPayload `json:"assumptions"`
	OpenQuestions []MemoryPayload `json:"open_questions"`
}

// DistillOutcome reports what distillation wrote, plus the raw extraction so
// callers can inspect dry runs.
type DistillOutcome struct {
	Inserted   int           `json:"inserted"`
	Deduped    int           `json:"deduped"`
	Superseded int           `json:"superseded"`
	Extracted  DistillBundle `json:"extracted"`
}
