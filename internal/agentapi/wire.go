package agentapi

import (
	"agentdesk/internal/types"
)

// =============================================================================
// WIRE CONTRACT
// =============================================================================
//
// Earlier revisions of the web client posted {company1, company2, userInput}.
// ContractVersion pins the current field names; bump it together with the
// struct tags below if the service changes them again.

// ContractVersion identifies the request field naming in use.
const ContractVersion = "2"

// Request is the uniform body posted to every agent endpoint.
type Request struct {
	CompanyName1    string `json:"companyName1"`
	CompanyName2    string `json:"companyName2"`
	TextInstruction string `json:"textInstruction"`
}

// WireMessage is a message as emitted by the agent service.
type WireMessage struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

// Response is the agent service reply. Messages is nil when the key is
// missing or null, which callers treat as an application-level failure.
type Response struct {
	Messages  *[]WireMessage `json:"messages,omitempty"`
	PDFReport string         `json:"pdf_report,omitempty"`
}

// HasMessages reports whether the response carried a message collection.
// An empty array still counts as present.
func (r *Response) HasMessages() bool {
	return r != nil && r.Messages != nil
}

// Normalize maps wire messages onto the transcript schema. This is the only
// place that knows the service calls its speaker field "source".
func Normalize(in []WireMessage) []types.Message {
	out := make([]types.Message, 0, len(in))
	for _, m := range in {
		out = append(out, types.Message{Role: m.Source, Content: m.Content})
	}
	return out
}

// ChooseRequest is posted to /choose-agent.
type ChooseRequest struct {
	SelectedAgents []string `json:"selected_agents"`
}

// ChooseResult is the /choose-agent reply. Results is keyed by
// "<agent>_output".
type ChooseResult struct {
	Status    string            `json:"status"`
	AgentsRun []string          `json:"agents_run,omitempty"`
	Results   map[string]string `json:"results,omitempty"`
	Message   string            `json:"message,omitempty"`
}

// OK reports whether the service accepted the selection.
func (r *ChooseResult) OK() bool {
	return r != nil && r.Status == "success"
}

// Messages flattens the per-agent outputs into transcript entries, in the
// order the agents ran.
func (r *ChooseResult) Messages() []types.Message {
	if r == nil {
		return nil
	}
	out := make([]types.Message, 0, len(r.Results))
	for _, agent := range r.AgentsRun {
		if content, ok := r.Results[agent+"_output"]; ok {
			out = append(out, types.Message{Role: agent + "_agent", Content: content})
		}
	}
	return out
}
