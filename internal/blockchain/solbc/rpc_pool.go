package solbc

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// RPCPool rotates requests across several RPC endpoints round-robin.
type RPCPool struct {
	clients []*rpc.Client
	mu      sync.Mutex
	index   int
	logger  *zap.Logger
}

func NewRPCPool(rpcList []string, logger *zap.Logger) *RPCPool {
	clients := make([]*rpc.Client, 0, len(rpcList))
	for _, url := range rpcList {
		clients = append(clients, rpc.New(url))
	}
	return &RPCPool{
		clients: clients,
		logger:  logger.Named("rpc-pool"),
	}
}

// Next returns the next client in rotation.
func (p *RPCPool) Next() *rpc.Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	client := p.clients[p.index]
	p.index = (p.index + 1) % len(p.clients)
	return client
}

// Size returns the number of pooled endpoints.
func (p *RPCPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

// HealthCheck drops endpoints that fail a blockhash probe. At least one
// client always stays in the pool.
func (p *RPCPool) HealthCheck(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	alive := make([]*rpc.Client, 0, len(p.clients))
	for i, client := range p.clients {
		cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := client.GetLatestBlockhash(cctx, rpc.CommitmentFinalized)
		cancel()
		if err != nil {
			p.logger.Warn("Dropping unhealthy RPC endpoint",
				zap.Int("index", i), zap.Error(err))
			continue
		}
		alive = append(alive, client)
	}
	if len(alive) > 0 {
		p.clients = alive
		if p.index >= len(p.clients) {
			p.index = 0
		}
	}
}
