package ai

import (
	"strings"
	"time"

	"github.com/rolohq/rolo/pkg/common"
)

// ExtractionSystemPrompt instructs the model to emit the structured
// extraction document. The predicate and namespace vocabularies are closed;
// anything outside them is dropped during conversion, so the prompt names
// them explicitly.
const ExtractionSystemPrompt = `You extract information about people from a personal note.

Identify every person mentioned. For each person emit:
- ref: a short key unique within this note (p1, p2, ...)
- name: the person's name as written, empty if unknown
- identifiers: explicit identifiers only, with namespace one of
  "handle" (usernames, @-handles), "address" (email or similar addresses),
  "native_id" (ids from an external system)
- facts: statements about the person, with predicate one of
  "works_at", "role", "can_help_with", "met_on", "met_at", "lives_in",
  "interested_in", "knows", "note", and confidence between 0 and 1
  reflecting how directly the note states the fact

Also emit edges between people mentioned in the note, with kind one of
"met", "knows", "intro", "worked_with", "did_business", "invested",
"cofounder", "mention".

Only extract what the note states. Never invent people or facts.`

// ExtractionDocument is the wire shape of structured extraction output.
// Identifiers are a pair list rather than a map so strict schema modes can
// describe them.
type ExtractionDocument struct {
	People []ExtractionPerson `json:"people"`
	Edges  []ExtractionEdge   `json:"edges"`
}

type ExtractionPerson struct {
	Ref         string                 `json:"ref"`
	Name        string                 `json:"name"`
	Identifiers []ExtractionIdentifier `json:"identifiers"`
	Facts       []ExtractionFact       `json:"facts"`
}

type ExtractionIdentifier struct {
	Namespace string `json:"namespace"`
	Value     string `json:"value"`
}

type ExtractionFact struct {
	Predicate  string  `json:"predicate"`
	Object     string  `json:"object"`
	Confidence float64 `json:"confidence"`
}

type ExtractionEdge struct {
	SourceRef string `json:"source_ref"`
	TargetRef string `json:"target_ref"`
	Kind      string `json:"kind"`
}

var knownNamespaces = map[string]struct{}{
	common.NamespaceHandle:   {},
	common.NamespaceAddress:  {},
	common.NamespaceNativeID: {},
}

// ToResult converts the wire document into the pipeline's input form,
// dropping people with neither name nor identifier and identifiers in
// unknown namespaces. Predicate filtering is the pipeline's job; conversion
// only enforces shape.
func (d ExtractionDocument) ToResult(evidenceID string, observedAt time.Time) common.ExtractionResult {
	res := common.ExtractionResult{
		EvidenceID: evidenceID,
		ObservedAt: observedAt,
	}
	refs := make(map[string]struct{})
	for _, p := range d.People {
		cand := common.CandidatePerson{
			Ref:  strings.TrimSpace(p.Ref),
			Name: strings.TrimSpace(p.Name),
		}
		for _, id := range p.Identifiers {
			ns := strings.TrimSpace(strings.ToLower(id.Namespace))
			if _, ok := knownNamespaces[ns]; !ok {
				continue
			}
			if strings.TrimSpace(id.Value) == "" {
				continue
			}
			if cand.Identifiers == nil {
				cand.Identifiers = make(map[string]string)
			}
			cand.Identifiers[ns] = strings.TrimSpace(id.Value)
		}
		if cand.Name == "" && len(cand.Identifiers) == 0 {
			continue
		}
		for _, f := range p.Facts {
			if strings.TrimSpace(f.Object) == "" {
				continue
			}
			cand.Facts = append(cand.Facts, common.CandidateFact{
				Predicate:  strings.TrimSpace(strings.ToLower(f.Predicate)),
				Object:     strings.TrimSpace(f.Object),
				Confidence: f.Confidence,
			})
		}
		if cand.Ref != "" {
			refs[cand.Ref] = struct{}{}
		}
		res.People = append(res.People, cand)
	}
	for _, e := range d.Edges {
		src := strings.TrimSpace(e.SourceRef)
		dst := strings.TrimSpace(e.TargetRef)
		if src == "" || dst == "" || src == dst {
			continue
		}
		if _, ok := refs[src]; !ok {
			continue
		}
		if _, ok := refs[dst]; !ok {
			continue
		}
		res.Edges = append(res.Edges, common.CandidateEdge{
			SourceRef: src,
			TargetRef: dst,
			Kind:      strings.TrimSpace(strings.ToLower(e.Kind)),
		})
	}
	return res
}
