package scenario

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"vaultsim/internal/journal"
	"vaultsim/internal/pool"
	"vaultsim/internal/router"
	"vaultsim/internal/token"
	"vaultsim/internal/types"
	"vaultsim/internal/vault"
)

// Harness addresses are fixed so journals from different runs line up.
var (
	vaultAddr     = common.HexToAddress("0x00000000000000000000000000000000000f0001")
	ownerAddr     = common.HexToAddress("0x00000000000000000000000000000000000f0002")
	clAddr        = common.HexToAddress("0x00000000000000000000000000000000000f0003")
	binAddr       = common.HexToAddress("0x00000000000000000000000000000000000f0004")
	routerAddr    = common.HexToAddress("0x00000000000000000000000000000000000f0005")
	liquidityAddr = common.HexToAddress("0x00000000000000000000000000000000000f0006")
)

// Runner executes a scenario document against a freshly built world.
type Runner struct {
	doc     Document
	logger  *zap.Logger
	journal *journal.Journal

	tokens     map[string]token.Token
	currencies map[string]types.Currency
	pools      map[string]types.PoolKey
	kinds      map[string]string

	vault     *vault.Vault
	cl        *pool.CLPoolManager
	bin       *pool.BinPoolManager
	router    *router.Router
	liquidity *router.LiquidityManager
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(doc Document, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		doc:        doc,
		logger:     logger,
		journal:    journal.New(),
		tokens:     make(map[string]token.Token),
		currencies: make(map[string]types.Currency),
		pools:      make(map[string]types.PoolKey),
		kinds:      make(map[string]string),
	}
}

// Journal exposes the run's event journal for flushing and reporting.
func (r *Runner) Journal() *journal.Journal {
	return r.journal
}

// Run builds the world and executes every step in order.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.build(); err != nil {
		return err
	}

	for i, step := range r.doc.Steps {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := r.apply(step)
		if step.ExpectError {
			if err == nil {
				return fmt.Errorf("step %d (%s): expected failure but it succeeded", i, step.Op)
			}
			r.logger.Info("step failed as expected", zap.Int("step", i), zap.String("op", step.Op), zap.String("error", err.Error()))
			continue
		}
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
	}

	r.logger.Info("scenario complete",
		zap.String("name", r.doc.Name),
		zap.Int("steps", len(r.doc.Steps)),
		zap.Int("events", len(r.journal.Events())),
	)
	return nil
}

func (r *Runner) build() error {
	registry := token.NewRegistry()
	for i, spec := range r.doc.Tokens {
		addr, err := tokenAddress(spec, i)
		if err != nil {
			return err
		}

		var t token.Token
		if spec.Rebasing {
			t = token.NewRebasingToken(spec.Symbol, spec.Decimals)
		} else {
			t = token.NewMockToken(token.MockConfig{
				Symbol:          spec.Symbol,
				Decimals:        spec.Decimals,
				TransferFeeBips: spec.TransferFeeBips,
				BurnBips:        spec.BurnBips,
				FeeCollector:    common.HexToAddress("0x00000000000000000000000000000000000f00fe"),
			})
		}

		currency := types.NewCurrency(addr)
		registry.Register(currency, t)
		r.tokens[spec.Symbol] = t
		r.currencies[spec.Symbol] = currency
	}

	r.vault = vault.New(vault.Config{
		Address: vaultAddr,
		Owner:   ownerAddr,
		Tokens:  registry,
		Journal: r.journal,
		Logger:  r.logger.Named("vault"),
	})
	r.cl = pool.NewCLPoolManager(pool.CLConfig{Address: clAddr, Vault: r.vault, Journal: r.journal, Logger: r.logger.Named("cl")})
	r.bin = pool.NewBinPoolManager(pool.BinConfig{Address: binAddr, Vault: r.vault, Journal: r.journal, Logger: r.logger.Named("bin")})
	r.vault.AddSnapshotter(registry)
	r.vault.AddSnapshotter(r.cl)
	r.vault.AddSnapshotter(r.bin)
	if err := r.vault.RegisterApp(ownerAddr, clAddr); err != nil {
		return fmt.Errorf("register cl manager: %w", err)
	}
	if err := r.vault.RegisterApp(ownerAddr, binAddr); err != nil {
		return fmt.Errorf("register bin manager: %w", err)
	}

	r.router = router.New(router.Config{
		Address: routerAddr,
		Vault:   r.vault,
		CL:      r.cl,
		Bin:     r.bin,
		Tokens:  registry,
		Logger:  r.logger.Named("router"),
	})
	r.liquidity = router.NewLiquidityManager(router.LiquidityConfig{
		Address: liquidityAddr,
		Vault:   r.vault,
		CL:      r.cl,
		Bin:     r.bin,
		Tokens:  registry,
		Logger:  r.logger.Named("liquidity"),
	})

	for _, spec := range r.doc.Pools {
		if err := r.initializePool(spec); err != nil {
			return fmt.Errorf("pool %q: %w", spec.Name, err)
		}
	}
	return nil
}

func (r *Runner) initializePool(spec PoolSpec) error {
	manager := clAddr
	params := types.PoolParameters{TickSpacing: spec.TickSpacing}
	if spec.Kind == KindBin {
		manager = binAddr
		params = types.PoolParameters{BinStep: spec.BinStep}
	}

	key, err := types.NewPoolKey(
		r.currencies[spec.Currency0],
		r.currencies[spec.Currency1],
		spec.Fee,
		params,
		common.Address{},
		manager,
	)
	if err != nil {
		return err
	}
	r.pools[spec.Name] = key
	r.kinds[spec.Name] = spec.Kind

	if spec.Kind == KindBin {
		activeID := spec.ActiveBin
		if activeID == 0 {
			activeID = pool.ParityBinID
		}
		_, err := r.bin.Initialize(key, activeID)
		return err
	}

	num, den := spec.PriceNum, spec.PriceDen
	if num == 0 {
		num = 1
	}
	if den == 0 {
		den = 1
	}
	price, err := pool.SqrtPriceFromRatio(num, den)
	if err != nil {
		return err
	}
	_, err = r.cl.Initialize(key, price)
	return err
}

func (r *Runner) apply(step Step) error {
	switch step.Op {
	case OpMint:
		amount, err := parseAmount(step.Amount)
		if err != nil {
			return err
		}
		r.tokens[step.Token].Mint(common.HexToAddress(step.Account), amount)
		r.logger.Info("mint", zap.String("token", step.Token), zap.String("account", step.Account), zap.String("amount", amount.String()))
		return nil

	case OpRebase:
		rebasing, ok := r.tokens[step.Token].(*token.RebasingToken)
		if !ok {
			return fmt.Errorf("token %q is not rebasing", step.Token)
		}
		if err := rebasing.Rebase(step.RebaseNum, step.RebaseDen); err != nil {
			return err
		}
		r.logger.Info("rebase", zap.String("token", step.Token), zap.Int64("num", step.RebaseNum), zap.Int64("den", step.RebaseDen))
		return nil

	case OpAddLiquidity:
		liquidity, err := parseAmount(step.Liquidity)
		if err != nil {
			return err
		}
		params := pool.ModifyLiquidityParams{
			TickLower:      step.TickLower,
			TickUpper:      step.TickUpper,
			LiquidityDelta: liquidity,
		}
		delta, err := r.liquidity.ModifyLiquidity(r.pools[step.Pool], params, common.HexToAddress(step.Account))
		if err != nil {
			return err
		}
		r.logStep(step, delta.Amount0, delta.Amount1)
		return nil

	case OpBinLiquidity:
		params := pool.BinLiquidityParams{BinID: step.BinID}
		if step.BinID == 0 {
			params.BinID = pool.ParityBinID
		}
		var err error
		if params.Amount0, err = parseOptionalAmount(step.Amount0); err != nil {
			return err
		}
		if params.Amount1, err = parseOptionalAmount(step.Amount1); err != nil {
			return err
		}
		if params.BurnShares, err = parseOptionalAmount(step.BurnShares); err != nil {
			return err
		}
		if params.Amount0 == nil {
			params.Amount0 = big.NewInt(0)
		}
		if params.Amount1 == nil {
			params.Amount1 = big.NewInt(0)
		}
		delta, err := r.liquidity.ModifyLiquidityBin(r.pools[step.Pool], params, common.HexToAddress(step.Account))
		if err != nil {
			return err
		}
		r.logStep(step, delta.Amount0, delta.Amount1)
		return nil

	case OpSwap:
		amount, err := parseAmount(step.Amount)
		if err != nil {
			return err
		}
		minOut, err := parseOptionalAmount(step.MinOut)
		if err != nil {
			return err
		}
		maxIn, err := parseOptionalAmount(step.MaxIn)
		if err != nil {
			return err
		}
		params := pool.SwapParams{ZeroForOne: step.ZeroForOne, AmountSpecified: amount}
		delta, err := r.router.Swap(r.pools[step.Pool], params, common.HexToAddress(step.Account), minOut, maxIn)
		if err != nil {
			return err
		}
		r.logStep(step, delta.Amount0, delta.Amount1)
		return nil

	case OpBinSwap:
		amount, err := parseAmount(step.Amount)
		if err != nil {
			return err
		}
		minOut, err := parseOptionalAmount(step.MinOut)
		if err != nil {
			return err
		}
		maxIn, err := parseOptionalAmount(step.MaxIn)
		if err != nil {
			return err
		}
		params := pool.BinSwapParams{ZeroForOne: step.ZeroForOne, AmountSpecified: amount, LimitBinID: step.LimitBin}
		delta, err := r.router.SwapBin(r.pools[step.Pool], params, common.HexToAddress(step.Account), minOut, maxIn)
		if err != nil {
			return err
		}
		r.logStep(step, delta.Amount0, delta.Amount1)
		return nil

	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
}

func (r *Runner) logStep(step Step, amount0, amount1 *big.Int) {
	r.logger.Info(step.Op,
		zap.String("pool", step.Pool),
		zap.String("account", step.Account),
		zap.String("amount0", amount0.String()),
		zap.String("amount1", amount1.String()),
	)
}

// tokenAddress resolves a token's address, assigning a deterministic one in
// declaration order when the spec leaves it unset.
func tokenAddress(spec TokenSpec, index int) (common.Address, error) {
	if spec.Address == "" {
		return common.BigToAddress(big.NewInt(int64(index) + 1)), nil
	}
	if !common.IsHexAddress(spec.Address) {
		return common.Address{}, fmt.Errorf("token %q: invalid address %q", spec.Symbol, spec.Address)
	}
	return common.HexToAddress(spec.Address), nil
}
