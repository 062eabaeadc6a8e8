package knowledge

// llmResponse is the structured output from the LLM
type llmResponse struct {
	Facts []fact `json:"facts"`
}

type fact struct {
	Title   string `json:"title"`
	Summary string `json:"summary"` // self-contained statement about the user
}
