package edgar

// RevenueConcepts lists the taxonomy concepts companies report top-line
// revenue under, in preference order. Filers switched concepts when ASC
// 606 took effect, so a single ticker's history can span several of them.
var RevenueConcepts = []string{
	"us-gaap:Revenues",
	"us-gaap:RevenueFromContractWithCustomerExcludingAssessedTax",
	"us-gaap:SalesRevenueNet",
	"us-gaap:Revenue",
}

// DefaultConcepts is the extraction catalog: the income statement, balance
// sheet, cash flow and entity metadata concepts retained from each filing.
// Everything else in a company facts document is discarded at fetch time.
var DefaultConcepts = []string{
	// Income statement
	"us-gaap:Revenues",
	"us-gaap:RevenueFromContractWithCustomerExcludingAssessedTax",
	"us-gaap:SalesRevenueNet",
	"us-gaap:Revenue",
	"us-gaap:CostOfRevenue",
	"us-gaap:GrossProfit",
	"us-gaap:ResearchAndDevelopmentExpense",
	"us-gaap:SellingGeneralAndAdministrativeExpense",
	"us-gaap:OperatingIncomeLoss",
	"us-gaap:NetIncomeLoss",
	"us-gaap:ProfitLoss",
	"us-gaap:EarningsPerShareBasic",
	"us-gaap:EarningsPerShareDiluted",
	"us-gaap:WeightedAverageNumberOfSharesOutstandingBasic",
	"us-gaap:WeightedAverageNumberOfDilutedSharesOutstanding",
	"us-gaap:OtherComprehensiveIncomeLossNetOfTax",
	"us-gaap:ShareBasedCompensation",

	// Balance sheet
	"us-gaap:Assets",
	"us-gaap:AssetsCurrent",
	"us-gaap:CashAndCashEquivalentsAtCarryingValue",
	"us-gaap:AccountsReceivableNetCurrent",
	"us-gaap:PrepaidExpenseAndOtherAssetsCurrent",
	"us-gaap:PropertyPlantAndEquipmentNet",
	"us-gaap:OperatingLeaseRightOfUseAsset",
	"us-gaap:IntangibleAssetsNetExcludingGoodwill",
	"us-gaap:Liabilities",
	"us-gaap:LiabilitiesCurrent",
	"us-gaap:AccountsPayableCurrent",
	"us-gaap:LongTermDebtNoncurrent",
	"us-gaap:OperatingLeaseLiabilityNoncurrent",
	"us-gaap:OtherLiabilitiesNoncurrent",
	"us-gaap:LiabilitiesAndStockholdersEquity",
	"us-gaap:StockholdersEquity",
	"us-gaap:CommonStockValue",
	"us-gaap:CommonStockSharesAuthorized",
	"us-gaap:CommonStockSharesOutstanding",
	"us-gaap:CommonStockParOrStatedValuePerShare",
	"us-gaap:AdditionalPaidInCapital",
	"us-gaap:RetainedEarningsAccumulatedDeficit",
	"us-gaap:AccumulatedOtherComprehensiveIncomeLossNetOfTax",

	// Cash flow
	"us-gaap:NetCashProvidedByUsedInOperatingActivities",
	"us-gaap:NetCashProvidedByOperatingActivities",
	"us-gaap:NetCashProvidedByUsedInInvestingActivities",
	"us-gaap:NetCashProvidedByUsedInFinancingActivities",
	"us-gaap:PaymentsToAcquirePropertyPlantAndEquipment",
	"us-gaap:IncreaseDecreaseInAccountsPayable",
	"us-gaap:CashCashEquivalentsRestrictedCashAndRestrictedCashEquivalents",

	// Entity metadata
	"dei:EntityRegistrantName",
	"dei:EntityCentralIndexKey",
	"dei:EntityCommonStockSharesOutstanding",
	"dei:DocumentType",
	"dei:DocumentPeriodEndDate",
	"dei:DocumentFiscalYearFocus",
	"dei:DocumentFiscalPeriodFocus",
	"dei:CurrentFiscalYearEndDate",
}
