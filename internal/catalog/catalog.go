// Package catalog holds static metadata about garak's probe families
// and the models known to run on small local GPUs. It is display
// data only; the live plugin listing comes from garak itself.
package catalog

// ProbeCategory describes one garak probe family.
type ProbeCategory struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ProbeCategories lists the garak probe families the wizard surfaces,
// in display order.
var ProbeCategories = []ProbeCategory{
	{ID: "encoding", Name: "Encoding Bypass", Description: "Test encoding-based bypasses (base64, rot13, etc.)"},
	{ID: "dan", Name: "DAN Jailbreaks", Description: `"Do Anything Now" jailbreak variants`},
	{ID: "promptinject", Name: "Prompt Injection", Description: "Direct prompt injection attacks"},
	{ID: "lmrc", Name: "Risk Cards", Description: "Language Model Risk Cards"},
	{ID: "atkgen", Name: "Attack Generation", Description: "Attack generation probes"},
	{ID: "gcg", Name: "GCG", Description: "Greedy Coordinate Gradient attacks"},
}

// VerifiedModels are HuggingFace models verified to run on a 4GB VRAM
// GPU, smallest first.
var VerifiedModels = []string{
	"distilgpt2",
	"gpt2",
	"gpt2-medium",
	"TinyLlama/TinyLlama-1.1B-Chat-v1.0",
}

// Lookup returns the category with the given id, or false.
func Lookup(id string) (ProbeCategory, bool) {
	for _, c := range ProbeCategories {
		if c.ID == id {
			return c, true
		}
	}
	return ProbeCategory{}, false
}

// IsVerifiedModel reports whether name is in the verified-model list.
func IsVerifiedModel(name string) bool {
	for _, m := range VerifiedModels {
		if m == name {
			return true
		}
	}
	return false
}
