package transform

import (
	"strings"

	"github.com/zhukov-alex/cdcrouter/internal/record"
)

type Category int

const (
	None Category = iota
	Flattened
	Nested
)

func (c Category) String() string {
	switch c {
	case Flattened:
		return "flattened"
	case Nested:
		return "nested"
	default:
		return "none"
	}
}

// AttrCategory is the message attribute naming the category of a transformed record.
const AttrCategory = "recordCategory"

// image keys of a stream change that receive the same normalization as the top level
var imageKeys = []string{"NewImage", "OldImage"}

type Transformer struct {
	cfg Config
}

func New(cfg Config) *Transformer {
	return &Transformer{cfg: cfg}
}

// Classify picks the category whose token occurs in the record origin.
// When both tokens occur, the longer one wins.
func (t *Transformer) Classify(rec record.ChangeRecord) Category {
	flat := t.cfg.Flattened.Token != "" && strings.Contains(rec.OriginStreamID, t.cfg.Flattened.Token)
	nested := t.cfg.Nested.Token != "" && strings.Contains(rec.OriginStreamID, t.cfg.Nested.Token)
	switch {
	case flat && nested:
		if len(t.cfg.Flattened.Token) >= len(t.cfg.Nested.Token) {
			return Flattened
		}
		return Nested
	case flat:
		return Flattened
	case nested:
		return Nested
	default:
		return None
	}
}

// ShouldProcess is the single place where the two categories exclude each
// other: flattened records pass only with the flag set, nested only without.
func ShouldProcess(c Category, flattenedEnabled bool) bool {
	switch c {
	case Flattened:
		return flattenedEnabled
	case Nested:
		return !flattenedEnabled
	default:
		return true
	}
}

func (t *Transformer) ShouldProcess(c Category) bool {
	return ShouldProcess(c, t.cfg.FlattenedEnabled)
}

// Transform applies the category field normalization and returns the new
// record along with message attributes. The input record is not modified.
func (t *Transformer) Transform(rec record.ChangeRecord, c Category) (record.ChangeRecord, map[string]string) {
	var cc CategoryConfig
	switch c {
	case Flattened:
		cc = t.cfg.Flattened
	case Nested:
		cc = t.cfg.Nested
	default:
		return rec, nil
	}

	attrs := map[string]string{AttrCategory: c.String()}
	if len(cc.DropFields) == 0 && len(cc.RenameFields) == 0 {
		return rec, attrs
	}

	payload := normalize(rec.Payload, cc)
	for _, k := range imageKeys {
		if img, ok := payload[k].(map[string]any); ok {
			payload[k] = normalize(img, cc)
		}
	}
	return rec.WithPayload(payload), attrs
}

func normalize(in map[string]any, cc CategoryConfig) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	for _, f := range cc.DropFields {
		delete(out, f)
	}
	for _, r := range cc.RenameFields {
		if v, ok := out[r.From]; ok {
			delete(out, r.From)
			out[r.To] = v
		}
	}
	return out
}
