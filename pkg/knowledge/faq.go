package knowledge

// Item is one knowledge-base entry. Embedding is filled in by the retriever.
type Item struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Category  string    `json:"category"`
	Embedding []float64 `json:"-"`
}

// DefaultFAQs returns the built-in DeFi FAQ set.
func DefaultFAQs() []Item {
	items := make([]Item, len(defaultFAQs))
	copy(items, defaultFAQs)
	return items
}

var defaultFAQs = []Item{
	{ID: "faq_001", Category: "basics",
		Question: "What is DeFi?",
		Answer:   "DeFi (Decentralized Finance) refers to financial services built on blockchain technology that operate without traditional intermediaries like banks."},
	{ID: "faq_002", Category: "yield",
		Question: "What is yield farming?",
		Answer:   "Yield farming involves lending or staking crypto assets in DeFi protocols to earn rewards, often in the form of additional tokens."},
	{ID: "faq_003", Category: "staking",
		Question: "What is staking?",
		Answer:   "Staking involves locking up cryptocurrency to support network operations and earn rewards, typically ranging from 5-20% APY depending on the protocol."},
	{ID: "faq_004", Category: "liquidity",
		Question: "What is liquidity providing?",
		Answer:   "Liquidity providing means depositing token pairs into automated market makers (AMMs) like Uniswap to earn trading fees and sometimes additional rewards."},
	{ID: "faq_005", Category: "risks",
		Question: "What are the risks of DeFi?",
		Answer:   "DeFi risks include smart contract bugs, impermanent loss, market volatility, rugpulls, and regulatory uncertainty. Always do thorough research."},
	{ID: "faq_006", Category: "risks",
		Question: "What is impermanent loss?",
		Answer:   "Impermanent loss occurs when providing liquidity to AMMs and the price ratio of your deposited tokens changes compared to just holding them."},
	{ID: "faq_007", Category: "basics",
		Question: "What is APY vs APR?",
		Answer:   "APY (Annual Percentage Yield) includes compounding effects, while APR (Annual Percentage Rate) is the simple annual rate without compounding."},
	{ID: "faq_008", Category: "safety",
		Question: "How do I choose a safe DeFi protocol?",
		Answer:   "Look for audited smart contracts, high TVL (Total Value Locked), established teams, transparent tokenomics, and strong community backing."},
	{ID: "faq_009", Category: "trading",
		Question: "What is a DEX?",
		Answer:   "A DEX (Decentralized Exchange) allows trading cryptocurrencies directly from your wallet without a central authority, like Uniswap or SushiSwap."},
	{ID: "faq_010", Category: "governance",
		Question: "What are governance tokens?",
		Answer:   "Governance tokens give holders voting rights in protocol decisions, like changing fees, adding new features, or treasury management."},
	{ID: "faq_011", Category: "metrics",
		Question: "What is TVL?",
		Answer:   "TVL (Total Value Locked) represents the total dollar value of assets deposited in a DeFi protocol, indicating its popularity and trust level."},
	{ID: "faq_012", Category: "advanced",
		Question: "What are flash loans?",
		Answer:   "Flash loans allow borrowing large amounts of crypto without collateral, as long as you repay within the same blockchain transaction."},
	{ID: "faq_013", Category: "trading",
		Question: "What is slippage?",
		Answer:   "Slippage is the price difference between when you place a trade and when it executes, often due to price movement during transaction processing."},
	{ID: "faq_014", Category: "technical",
		Question: "How do gas fees work?",
		Answer:   "Gas fees are transaction costs on blockchain networks like Ethereum. They vary based on network congestion and transaction complexity."},
	{ID: "faq_015", Category: "technical",
		Question: "What is a smart contract?",
		Answer:   "Smart contracts are self-executing programs on blockchain that automatically enforce agreements without intermediaries when conditions are met."},
	{ID: "faq_016", Category: "basics",
		Question: "What are stablecoins?",
		Answer:   "Stablecoins are cryptocurrencies designed to maintain stable value, usually pegged to USD, like USDC, USDT, or DAI."},
	{ID: "faq_017", Category: "lending",
		Question: "What is collateral?",
		Answer:   "Collateral is an asset you lock up to secure a loan or position in DeFi, which can be liquidated if the loan isn't repaid."},
	{ID: "faq_018", Category: "strategies",
		Question: "What is a vault strategy?",
		Answer:   "Vault strategies are automated DeFi investment approaches that optimize yield farming across multiple protocols to maximize returns."},
	{ID: "faq_019", Category: "safety",
		Question: "How do I start with DeFi safely?",
		Answer:   "Start with reputable protocols, use small amounts initially, understand the risks, keep private keys secure, and never invest more than you can lose."},
	{ID: "faq_020", Category: "advanced",
		Question: "What is MEV?",
		Answer:   "MEV (Maximum Extractable Value) refers to profit opportunities from reordering, including, or censoring transactions within blocks, often through arbitrage or frontrunning."},
}
