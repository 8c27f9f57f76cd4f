// Package seeds holds the built-in scenario premises.
package seeds

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/agenthands/texty/internal/core/model"
)

//go:embed data/*.json
var files embed.FS

var ErrUnknownSeed = errors.New("unknown seed")

// NotStartedSummary is the summary of a seed that has not been played yet.
const NotStartedSummary = "(Game not yet begun)"

// Premise is the on-disk form of a seed.
type Premise struct {
	Premise      string              `json:"premise"`
	GameElements []model.GameElement `json:"game_elements"`
}

// Names lists the embedded seeds in alphabetical order.
func Names() []string {
	entries, err := fs.ReadDir(files, "data")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names
}

// Load returns the named seed as an unattached root node (empty id).
func Load(name string) (model.TimeNode, error) {
	data, err := files.ReadFile(path.Join("data", name+".json"))
	if err != nil {
		return model.TimeNode{}, fmt.Errorf("%w: %s", ErrUnknownSeed, name)
	}
	node, err := Parse(data)
	if err != nil {
		return model.TimeNode{}, fmt.Errorf("seed %s: %w", name, err)
	}
	return node, nil
}

// Parse turns a premise document into an unattached root node.
func Parse(data []byte) (model.TimeNode, error) {
	var p Premise
	if err := json.Unmarshal(data, &p); err != nil {
		return model.TimeNode{}, fmt.Errorf("decode premise: %w", err)
	}
	if strings.TrimSpace(p.Premise) == "" {
		return model.TimeNode{}, errors.New("premise is required")
	}

	var errs []error
	for _, e := range p.GameElements {
		if err := e.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	node := model.TimeNode{
		Summary:      NotStartedSummary,
		Premise:      p.Premise,
		GameElements: p.GameElements,
	}
	if dups := node.DuplicateElementIDs(); len(dups) > 0 {
		errs = append(errs, fmt.Errorf("duplicate element ids: %s", strings.Join(dups, ", ")))
	}
	if err := errors.Join(errs...); err != nil {
		return model.TimeNode{}, err
	}
	return node, nil
}
