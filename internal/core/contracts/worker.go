package contracts

import "context"

type AsyncWorker interface {
	// Run starts the consumer loop for the order event stream
	Run(ctx context.Context) error
	// ProcessMessage decodes one stream entry, routes it,
	// then acknowledges and deletes it.
	ProcessMessage(ctx context.Context, msgID string, rawData []byte) error
}
