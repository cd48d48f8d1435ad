package llm

import "context"

// FuncProvider adapts a plain function into a Provider, mostly for tests.
type FuncProvider struct {
	ProviderID ProviderID
	ModelNames ModelSet
	StreamFunc func(ctx context.Context, request StreamRequest) (*ChatStream, error)
}

var _ Provider = (*FuncProvider)(nil)

func (f *FuncProvider) ID() ProviderID { return f.ProviderID }

func (f *FuncProvider) Models() []string { return f.ModelNames }

func (f *FuncProvider) SupportsModel(model string) bool { return f.ModelNames.Supports(model) }

func (f *FuncProvider) Stream(ctx context.Context, request StreamRequest, _ ...Option) (*ChatStream, error) {
	return f.StreamFunc(ctx, request)
}
