package agent

import (
	"encoding/json"
	"fmt"

	"github.com/vinayprograms/taskagent/internal/llm"
)

// callSignature identifies a tool call by name plus canonical argument
// JSON. encoding/json sorts map keys, so argument order never changes
// the signature.
type callSignature string

func signatureFor(call llm.ToolCall) callSignature {
	data, err := json.Marshal(call.Args)
	if err != nil {
		data = []byte(fmt.Sprintf("%v", call.Args))
	}
	return callSignature(call.Name + ":" + string(data))
}

// signatureWindow tracks the most recent call signatures for
// repeated-action detection. Old entries slide out, so a call repeated
// far apart is not flagged.
type signatureWindow struct {
	size    int
	entries []callSignature
}

func newSignatureWindow(size int) *signatureWindow {
	if size < 1 {
		size = 1
	}
	return &signatureWindow{size: size}
}

// observe records sig and returns how many times it now occurs in the
// window, the current observation included.
func (w *signatureWindow) observe(sig callSignature) int {
	w.entries = append(w.entries, sig)
	if len(w.entries) > w.size {
		w.entries = w.entries[len(w.entries)-w.size:]
	}
	count := 0
	for _, s := range w.entries {
		if s == sig {
			count++
		}
	}
	return count
}
