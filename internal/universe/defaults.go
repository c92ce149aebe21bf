package universe

// Defaults are the retail-heavy universes tested by a full run.
var Defaults = []Universe{
	{
		Key:       "meme_stocks",
		Name:      "Meme / Reddit Stocks",
		Rationale: "Extreme retail participation, emotional swings, social media driven",
		Symbols: []string{
			"GME", "AMC", "PLTR", "SOFI", "BB", "BBBY", "WISH",
			"CLOV", "RIVN", "LCID", "NIO", "MARA", "RIOT",
			"DKNG", "HOOD", "SNAP", "PINS",
		},
	},
	{
		Key:       "popular_options",
		Name:      "High Retail Options Volume",
		Rationale: "Retail traders love weekly options on these - creates gamma squeezes",
		Symbols: []string{
			"SPY", "QQQ", "TSLA", "AAPL", "NVDA", "AMD", "META",
			"AMZN", "MSFT", "GOOGL", "NFLX", "COIN", "SQ",
		},
	},
	{
		Key:       "small_cap_momentum",
		Name:      "Small Cap Momentum",
		Rationale: "Low institutional coverage, retail-driven pumps and dumps",
		Symbols: []string{
			"SOFI", "PLTR", "MARA", "RIOT", "LCID", "RIVN",
			"JOBY", "STEM", "IONQ", "RKLB", "DNA", "OPEN",
		},
	},
	{
		Key:       "crypto",
		Name:      "Crypto (Retail Dominated)",
		Rationale: "Most retail of all markets, 24/7 emotional trading, social media driven",
		Symbols: []string{
			"BTC-USD", "ETH-USD", "SOL-USD", "DOGE-USD",
			"ADA-USD", "XRP-USD", "AVAX-USD", "MATIC-USD",
		},
	},
	{
		Key:       "etf_retail",
		Name:      "Popular Retail ETFs",
		Rationale: "Retail traders use these for broad bets, high options volume",
		Symbols: []string{
			"SPY", "QQQ", "IWM", "ARKK", "TQQQ", "SQQQ",
			"XLE", "XLF", "GLD", "SLV", "USO", "TLT",
		},
	},
}

// Default returns a registry of the built-in universes.
func Default() *Registry {
	r, err := NewRegistry(Defaults...)
	if err != nil {
		panic("universe: invalid defaults: " + err.Error())
	}
	return r
}
