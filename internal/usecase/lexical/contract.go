package lexical

import "context"

// Generator produces text through a generative language model.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}
