package memory

import "github.com/nugget/localagent/internal/prompts"

// Compressor bounds the history sent to the model. When a transcript is
// longer than Threshold, everything between the first KeepHead and the
// last KeepTail turns is replaced by one system turn saying how many
// turns were dropped. No summarization happens.
type Compressor struct {
	Threshold int
	KeepHead  int
	KeepTail  int
}

// DefaultCompressor keeps 2 + 24 turns once a transcript passes 30.
func DefaultCompressor() Compressor {
	return Compressor{Threshold: 30, KeepHead: 2, KeepTail: 24}
}

// Bound returns turns unchanged when short enough, otherwise the
// compressed view. The input slice is never modified.
func (c Compressor) Bound(turns []Turn) []Turn {
	if len(turns) <= c.Threshold || c.KeepHead+c.KeepTail >= len(turns) {
		return turns
	}

	dropped := len(turns) - c.KeepHead - c.KeepTail
	out := make([]Turn, 0, c.KeepHead+1+c.KeepTail)
	out = append(out, turns[:c.KeepHead]...)
	out = append(out, Turn{
		Role:      RoleSystem,
		Text:      prompts.CompressionNotice(dropped),
		Timestamp: turns[c.KeepHead+dropped-1].Timestamp,
	})
	out = append(out, turns[len(turns)-c.KeepTail:]...)
	return out
}
