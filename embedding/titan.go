package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/hupe1980/ccvec/codec"
	"github.com/hupe1980/ccvec/model"
)

// DefaultTitanModel is the Titan text embedding model used by default.
const DefaultTitanModel = "amazon.titan-embed-text-v2:0"

// BedrockClient is the subset of *bedrockruntime.Client used by Titan.
type BedrockClient interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// TitanOptions configures a Titan embedder.
type TitanOptions struct {
	ModelID    string
	Dimensions int
	Normalize  bool
}

// DefaultTitanOptions contains the default Titan configuration.
var DefaultTitanOptions = TitanOptions{
	ModelID:    DefaultTitanModel,
	Dimensions: 768,
	Normalize:  true,
}

// Titan embeds text with Amazon Bedrock Titan embeddings.
type Titan struct {
	client BedrockClient
	opts   TitanOptions
}

type titanRequest struct {
	InputText  string `json:"inputText"`
	Dimensions int    `json:"dimensions,omitempty"`
	Normalize  bool   `json:"normalize"`
}

type titanResponse struct {
	Embedding           []float32 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

// NewTitan creates a Titan embedder on top of a Bedrock runtime client.
func NewTitan(client BedrockClient, optFns ...func(o *TitanOptions)) (*Titan, error) {
	if client == nil {
		return nil, errors.New("embedding: titan requires a bedrock runtime client")
	}

	opts := DefaultTitanOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.ModelID == "" {
		opts.ModelID = DefaultTitanModel
	}

	return &Titan{client: client, opts: opts}, nil
}

// Dimensions returns the requested embedding dimension.
func (t *Titan) Dimensions() int { return t.opts.Dimensions }

// Embed calls InvokeModel with text truncated to MaxInputChars.
func (t *Titan) Embed(ctx context.Context, text string) (model.Vector, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}

	body, err := codec.Default.Marshal(titanRequest{
		InputText:  Truncate(text, MaxInputChars),
		Dimensions: t.opts.Dimensions,
		Normalize:  t.opts.Normalize,
	})
	if err != nil {
		return nil, err
	}

	out, err := t.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(t.opts.ModelID),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: invoke %s: %w", t.opts.ModelID, err)
	}

	var resp titanResponse
	if err := codec.Default.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("embedding: decode response: %w", err)
	}
	if t.opts.Dimensions > 0 && len(resp.Embedding) != t.opts.Dimensions {
		return nil, &ErrBadDimension{Expected: t.opts.Dimensions, Actual: len(resp.Embedding)}
	}
	return resp.Embedding, nil
}
