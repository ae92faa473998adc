package detect

import "github.com/signalhaus/signalhaus/internal/model"

// Definition is one signal-type detection rule. Keywords are matched
// case-insensitively as substrings; two or more total occurrences emit a
// candidate. WhyMatters doubles as the summary fallback when no keyword
// sentence can be extracted.
type Definition struct {
	Type       model.SignalType
	Label      string
	Keywords   []string
	WhyMatters string
}

// definitions is the closed rule table, one entry per signal type.
// Keywords carry both English and German variants because source material
// is mixed-language.
var definitions = []Definition{
	{
		Type:  model.SignalInventorySurplus,
		Label: "Inventory surplus",
		Keywords: []string{
			"inventory surplus", "excess stock", "excess inventory", "elevated inventory",
			"inventory levels", "overstock", "surplus stock", "destocking", "inventory correction",
			"überbestände", "lagerbestände", "lagerüberhang", "überschussware",
		},
		WhyMatters: "Excess stock must move quickly; the company is motivated to sell at a discount.",
	},
	{
		Type:  model.SignalEarningsMiss,
		Label: "Earnings miss",
		Keywords: []string{
			"earnings miss", "below expectations", "profit warning", "missed guidance",
			"lowered guidance", "revenue decline", "weaker than expected", "shortfall",
			"gewinnwarnung", "umsatzrückgang", "prognose gesenkt",
		},
		WhyMatters: "Pressure on the P&L makes one-off liquidation revenue attractive.",
	},
	{
		Type:  model.SignalProductDiscontinuation,
		Label: "Product discontinuation",
		Keywords: []string{
			"discontinued", "discontinuation", "end of life", "phase out", "phasing out",
			"delisting", "sortimentsbereinigung", "auslaufartikel", "eingestellt",
			"portfolio streamlining", "sku reduction",
		},
		WhyMatters: "Discontinued lines leave residual stock that needs a buyer.",
	},
	{
		Type:  model.SignalPlantClosure,
		Label: "Plant closure",
		Keywords: []string{
			"plant closure", "factory closure", "closing the plant", "site closure",
			"production halt", "werksschließung", "standortschließung", "produktionsstopp",
			"shutting down production",
		},
		WhyMatters: "Closures strand finished goods and components that must be cleared.",
	},
	{
		Type:  model.SignalFiscalYearEnd,
		Label: "Fiscal year end",
		Keywords: []string{
			"fiscal year end", "year-end", "financial year ending", "q4", "fourth quarter",
			"geschäftsjahresende", "jahresabschluss", "bilanzstichtag",
		},
		WhyMatters: "Balance-sheet pressure before closing drives write-down sales.",
	},
	{
		Type:  model.SignalOverstockClearance,
		Label: "Overstock clearance",
		Keywords: []string{
			"clearance", "liquidation", "räumungsverkauf", "abverkauf", "restposten",
			"clearance sale", "stock clearance", "closeout", "sonderposten",
		},
		WhyMatters: "An active clearance is a direct invitation to bid on volume.",
	},
	{
		Type:  model.SignalLeadershipChange,
		Label: "Leadership change",
		Keywords: []string{
			"new ceo", "new cfo", "new coo", "appointed", "succeeds", "steps down",
			"resigns", "leadership change", "management change", "geschäftsführerwechsel",
			"vorstandswechsel", "neuer geschäftsführer",
		},
		WhyMatters: "New leadership revisits supplier lists and old decisions.",
	},
	{
		Type:  model.SignalRestructuring,
		Label: "Restructuring",
		Keywords: []string{
			"restructuring", "reorganization", "transformation program", "turnaround",
			"job cuts", "layoffs", "stellenabbau", "restrukturierung", "umbau", "sanierung",
		},
		WhyMatters: "Restructuring frees up inventory and loosens procurement habits.",
	},
	{
		Type:  model.SignalMergerAcquisition,
		Label: "Merger or acquisition",
		Keywords: []string{
			"acquisition", "acquires", "merger", "takeover", "übernahme", "fusion",
			"to acquire", "buyout", "zusammenschluss",
		},
		WhyMatters: "Portfolio overlaps after a deal create duplicate stock to divest.",
	},
	{
		Type:  model.SignalMarketExit,
		Label: "Market exit",
		Keywords: []string{
			"exits the market", "market exit", "withdrawing from", "pulls out of",
			"marktaustritt", "rückzug aus", "ceases operations", "exiting the",
		},
		WhyMatters: "Exiting a market strands whole category inventories.",
	},
	{
		Type:  model.SignalStrategyShift,
		Label: "Strategy shift",
		Keywords: []string{
			"strategic shift", "new strategy", "refocus", "pivot", "strategieänderung",
			"neuausrichtung", "realignment", "core business focus", "divestment",
		},
		WhyMatters: "Non-core lines get divested when strategy changes.",
	},
	{
		Type:  model.SignalCostCuttingProgram,
		Label: "Cost-cutting program",
		Keywords: []string{
			"cost cutting", "cost reduction", "savings program", "efficiency program",
			"sparprogramm", "kostensenkung", "einsparungen", "cost discipline",
		},
		WhyMatters: "Cost programs monetize working capital, including stock.",
	},
	{
		Type:  model.SignalCategoryOversupply,
		Label: "Category oversupply",
		Keywords: []string{
			"oversupply", "overcapacity", "glut", "saturated market", "überangebot",
			"überkapazität", "marktsättigung", "supply glut",
		},
		WhyMatters: "Sector-wide oversupply depresses prices across every supplier.",
	},
	{
		Type:  model.SignalDemandDrop,
		Label: "Demand drop",
		Keywords: []string{
			"demand drop", "weak demand", "declining demand", "consumer restraint",
			"nachfragerückgang", "kaufzurückhaltung", "schwache nachfrage", "slump",
		},
		WhyMatters: "Falling sell-through leaves suppliers holding unsold goods.",
	},
	{
		Type:  model.SignalPricePressure,
		Label: "Price pressure",
		Keywords: []string{
			"price pressure", "price war", "margin pressure", "discounting",
			"preisdruck", "preiskampf", "margendruck", "price erosion",
		},
		WhyMatters: "Margin pressure makes alternative channels more acceptable.",
	},
	{
		Type:  model.SignalCompetitorDistress,
		Label: "Competitor distress",
		Keywords: []string{
			"insolvency", "bankruptcy", "insolvenz", "zahlungsunfähig", "chapter 11",
			"administration", "distress", "winding down", "konkurs",
		},
		WhyMatters: "A distressed competitor reshuffles supply across the category.",
	},
	{
		Type:  model.SignalRegulationChange,
		Label: "Regulation change",
		Keywords: []string{
			"new regulation", "regulatory change", "compliance deadline", "directive",
			"verordnung", "regulierung", "gesetzesänderung", "ban on", "verbot",
		},
		WhyMatters: "Regulation can make existing stock unsellable through normal channels.",
	},
	{
		Type:  model.SignalSupplyChainShift,
		Label: "Supply chain shift",
		Keywords: []string{
			"supply chain", "nearshoring", "reshoring", "supplier change", "sourcing shift",
			"lieferkette", "beschaffung", "logistics disruption", "lieferengpass",
		},
		WhyMatters: "Re-routed supply chains orphan transit and buffer stock.",
	},
	{
		Type:  model.SignalNewProcurementLead,
		Label: "New procurement lead",
		Keywords: []string{
			"head of procurement", "procurement director", "chief procurement",
			"new buyer", "einkaufsleiter", "leiter einkauf", "purchasing manager",
			"sourcing director",
		},
		WhyMatters: "A new procurement lead is open to meeting new partners.",
	},
	{
		Type:  model.SignalPartnershipAnnouncement,
		Label: "Partnership announcement",
		Keywords: []string{
			"partnership", "strategic alliance", "cooperation agreement", "joint venture",
			"partnerschaft", "kooperation", "zusammenarbeit", "teams up with",
		},
		WhyMatters: "Partnership activity signals openness to new commercial relationships.",
	},
	{
		Type:  model.SignalTradeShowPresence,
		Label: "Trade show presence",
		Keywords: []string{
			"trade show", "trade fair", "exhibition", "booth", "messe", "messestand",
			"ifa", "ambiente", "exhibiting at",
		},
		WhyMatters: "A trade show is a low-friction window to meet decision makers.",
	},
	{
		Type:  model.SignalExpansion,
		Label: "Expansion",
		Keywords: []string{
			"expansion", "new market entry", "opens new", "expands into", "growth plan",
			"expandiert", "erweiterung", "neue niederlassung", "scaling up",
		},
		WhyMatters: "Expansion phases buy in bulk and revisit supplier rosters.",
	},
	{
		Type:  model.SignalSustainabilityPush,
		Label: "Sustainability initiative",
		Keywords: []string{
			"sustainability", "circular economy", "carbon neutral", "esg",
			"nachhaltigkeit", "kreislaufwirtschaft", "klimaneutral", "re-commerce",
			"waste reduction",
		},
		WhyMatters: "Circular-economy goals favor resale over destruction of surplus.",
	},
	{
		Type:  model.SignalDigitalTransformation,
		Label: "Digital transformation",
		Keywords: []string{
			"digital transformation", "e-commerce push", "online channel", "digitalization",
			"digitalisierung", "onlinehandel", "marketplace launch", "d2c",
		},
		WhyMatters: "Channel shifts strand stock planned for the old channel.",
	},
}

// Definitions returns the full rule table in stable order.
func Definitions() []Definition { return definitions }

// categoryKeywords maps each product taxonomy entry to its match terms.
// Categories attach to a signal at two or more total occurrences.
var categoryKeywords = map[model.Category][]string{
	model.CategoryElectronics: {
		"electronics", "consumer electronics", "elektronik", "tv", "audio",
		"smartphone", "notebook", "unterhaltungselektronik",
	},
	model.CategoryHomeAppliance: {
		"home appliance", "appliances", "haushaltsgeräte", "washing machine",
		"dishwasher", "refrigerator", "kühlschrank", "waschmaschine", "white goods",
	},
	model.CategoryPersonalCare: {
		"personal care", "personal health", "körperpflege", "grooming", "shaver",
		"toothbrush", "kosmetik", "beauty",
	},
	model.CategoryFashion: {
		"fashion", "apparel", "clothing", "mode", "bekleidung", "schuhe", "footwear",
		"textilien",
	},
	model.CategorySportsLeisure: {
		"sports", "sporting goods", "outdoor", "fitness", "sportartikel", "freizeit",
		"fahrrad", "bicycle",
	},
	model.CategoryToys: {
		"toys", "spielwaren", "spielzeug", "games", "lego", "puzzle",
	},
	model.CategoryDIYGarden: {
		"diy", "power tools", "garden", "baumarkt", "werkzeug", "garten",
		"gartengeräte", "home improvement",
	},
	model.CategoryFoodBeverage: {
		"food", "beverage", "lebensmittel", "getränke", "snacks", "confectionery",
		"süßwaren", "drinks",
	},
	model.CategoryHousehold: {
		"household", "haushaltswaren", "kitchenware", "cookware", "glassware",
		"küchenhelfer", "cleaning products", "reinigungsmittel",
	},
}
