package scenario

// Demo returns a built-in scenario: a WETH/USDC concentrated pool at price
// 2000 plus a parity-priced bin pool, with liquidity provisioning, an
// exact-input swap, and a failing swap from an unfunded account.
func Demo() Document {
	lp := "0x00000000000000000000000000000000000a0001"
	trader := "0x00000000000000000000000000000000000a0002"
	broke := "0x00000000000000000000000000000000000a0003"

	return Document{
		Name: "demo",
		Tokens: []TokenSpec{
			{Symbol: "WETH", Decimals: 18},
			{Symbol: "USDC", Decimals: 6},
		},
		Pools: []PoolSpec{
			{Name: "weth-usdc", Kind: KindCL, Currency0: "WETH", Currency1: "USDC", Fee: 3000, TickSpacing: 60, PriceNum: 2000, PriceDen: 1},
			{Name: "weth-usdc-bin", Kind: KindBin, Currency0: "WETH", Currency1: "USDC", Fee: 3000, BinStep: 10},
		},
		Steps: []Step{
			{Op: OpMint, Token: "WETH", Account: lp, Amount: "1000000"},
			{Op: OpMint, Token: "USDC", Account: lp, Amount: "4000000000"},
			{Op: OpAddLiquidity, Pool: "weth-usdc", Account: lp, TickLower: -600, TickUpper: 600, Liquidity: "1000000"},
			{Op: OpBinLiquidity, Pool: "weth-usdc-bin", Account: lp, Amount1: "1000000"},

			{Op: OpMint, Token: "WETH", Account: trader, Amount: "10100"},
			{Op: OpSwap, Pool: "weth-usdc", Account: trader, ZeroForOne: true, Amount: "-10000"},
			{Op: OpBinSwap, Pool: "weth-usdc-bin", Account: trader, ZeroForOne: true, Amount: "-100"},

			{Op: OpSwap, Pool: "weth-usdc", Account: broke, ZeroForOne: true, Amount: "-100", ExpectError: true},
		},
	}
}
