package yahoo

import (
	"fmt"
	"strings"
)

// Yahoo wraps most numbers as {"raw": 1.23, "fmt": "1.23"} objects.
type rawValue struct {
	Raw *float64 `json:"raw"`
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []quoteSummaryResult `json:"result"`
	} `json:"quoteSummary"`
}

type quoteSummaryResult struct {
	Price *struct {
		RegularMarketPrice         rawValue `json:"regularMarketPrice"`
		RegularMarketChangePercent rawValue `json:"regularMarketChangePercent"`
		LongName                   string   `json:"longName"`
		ShortName                  string   `json:"shortName"`
		ExchangeName               string   `json:"exchangeName"`
		MarketCap                  rawValue `json:"marketCap"`
	} `json:"price"`

	SummaryProfile *struct {
		Sector   string `json:"sector"`
		Industry string `json:"industry"`
	} `json:"summaryProfile"`

	SummaryDetail *struct {
		Beta                 rawValue `json:"beta"`
		FiftyTwoWeekHigh     rawValue `json:"fiftyTwoWeekHigh"`
		FiftyTwoWeekLow      rawValue `json:"fiftyTwoWeekLow"`
		AverageVolume        rawValue `json:"averageVolume"`
		TrailingPE           rawValue `json:"trailingPE"`
		ForwardPE            rawValue `json:"forwardPE"`
		PriceToSalesTrailing rawValue `json:"priceToSalesTrailing12Months"`
		DividendYield        rawValue `json:"dividendYield"`
		PayoutRatio          rawValue `json:"payoutRatio"`
	} `json:"summaryDetail"`

	FinancialData *struct {
		RevenueGrowth           rawValue `json:"revenueGrowth"`
		EarningsGrowth          rawValue `json:"earningsGrowth"`
		GrossMargins            rawValue `json:"grossMargins"`
		EbitdaMargins           rawValue `json:"ebitdaMargins"`
		OperatingMargins        rawValue `json:"operatingMargins"`
		ProfitMargins           rawValue `json:"profitMargins"`
		ReturnOnEquity          rawValue `json:"returnOnEquity"`
		ReturnOnAssets          rawValue `json:"returnOnAssets"`
		CurrentRatio            rawValue `json:"currentRatio"`
		QuickRatio              rawValue `json:"quickRatio"`
		DebtToEquity            rawValue `json:"debtToEquity"`
		TotalDebt               rawValue `json:"totalDebt"`
		TotalCash               rawValue `json:"totalCash"`
		FreeCashflow            rawValue `json:"freeCashflow"`
		OperatingCashflow       rawValue `json:"operatingCashflow"`
		TargetMeanPrice         rawValue `json:"targetMeanPrice"`
		TargetMedianPrice       rawValue `json:"targetMedianPrice"`
		TargetHighPrice         rawValue `json:"targetHighPrice"`
		TargetLowPrice          rawValue `json:"targetLowPrice"`
		RecommendationMean      rawValue `json:"recommendationMean"`
		RecommendationKey       string   `json:"recommendationKey"`
		NumberOfAnalystOpinions rawValue `json:"numberOfAnalystOpinions"`
	} `json:"financialData"`

	DefaultKeyStatistics *struct {
		PriceToBook         rawValue `json:"priceToBook"`
		EnterpriseToEbitda  rawValue `json:"enterpriseToEbitda"`
		EnterpriseToRevenue rawValue `json:"enterpriseToRevenue"`
		TrailingEps         rawValue `json:"trailingEps"`
		ForwardEps          rawValue `json:"forwardEps"`
		PegRatio            rawValue `json:"pegRatio"`
		EarningsQuarterly   rawValue `json:"earningsQuarterlyGrowth"`
	} `json:"defaultKeyStatistics"`
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
	} `json:"chart"`
}

// flattenQuoteSummary maps the module-structured Yahoo payload onto the flat
// key set the rest of the system consumes. Keys for unavailable fields are
// left out entirely so downstream null handling stays uniform.
func flattenQuoteSummary(resp *quoteSummaryResponse) map[string]interface{} {
	info := make(map[string]interface{})
	if resp == nil || len(resp.QuoteSummary.Result) == 0 {
		return info
	}
	r := resp.QuoteSummary.Result[0]

	if p := r.Price; p != nil {
		put(info, "price", p.RegularMarketPrice.Raw)
		if v := p.RegularMarketChangePercent.Raw; v != nil {
			info["change_percent"] = round2(*v * 100)
		}
		if p.LongName != "" {
			info["name"] = p.LongName
		} else if p.ShortName != "" {
			info["name"] = p.ShortName
		}
		if p.ExchangeName != "" {
			info["exchange"] = p.ExchangeName
		}
		put(info, "market_cap", p.MarketCap.Raw)
	}

	if sp := r.SummaryProfile; sp != nil {
		if sp.Sector != "" {
			info["sector"] = sp.Sector
		}
		if sp.Industry != "" {
			info["industry"] = sp.Industry
		}
	}

	if sd := r.SummaryDetail; sd != nil {
		put(info, "beta", sd.Beta.Raw)
		put(info, "week_52_high", sd.FiftyTwoWeekHigh.Raw)
		put(info, "week_52_low", sd.FiftyTwoWeekLow.Raw)
		put(info, "avg_volume", sd.AverageVolume.Raw)
		put(info, "pe_ttm", sd.TrailingPE.Raw)
		put(info, "pe_ntm", sd.ForwardPE.Raw)
		put(info, "ps_ttm", sd.PriceToSalesTrailing.Raw)
		putPct(info, "dividend_yield", sd.DividendYield.Raw)
		putPct(info, "payout_ratio", sd.PayoutRatio.Raw)
	}

	if fd := r.FinancialData; fd != nil {
		putPct(info, "revenue_growth_yoy", fd.RevenueGrowth.Raw)
		putPct(info, "earnings_growth_yoy", fd.EarningsGrowth.Raw)
		putPct(info, "gross_margin", fd.GrossMargins.Raw)
		putPct(info, "ebitda_margin", fd.EbitdaMargins.Raw)
		putPct(info, "operating_margin", fd.OperatingMargins.Raw)
		putPct(info, "net_margin", fd.ProfitMargins.Raw)
		putPct(info, "roe", fd.ReturnOnEquity.Raw)
		putPct(info, "roa", fd.ReturnOnAssets.Raw)
		put(info, "current_ratio", fd.CurrentRatio.Raw)
		put(info, "quick_ratio", fd.QuickRatio.Raw)
		// Yahoo reports debt/equity as a percent figure.
		if v := fd.DebtToEquity.Raw; v != nil {
			info["debt_to_equity"] = round2(*v / 100)
		}
		put(info, "total_debt", fd.TotalDebt.Raw)
		put(info, "total_cash", fd.TotalCash.Raw)
		put(info, "free_cash_flow", fd.FreeCashflow.Raw)
		put(info, "operating_cash_flow", fd.OperatingCashflow.Raw)
		put(info, "target_mean", fd.TargetMeanPrice.Raw)
		put(info, "target_median", fd.TargetMedianPrice.Raw)
		put(info, "target_high", fd.TargetHighPrice.Raw)
		put(info, "target_low", fd.TargetLowPrice.Raw)
		if fd.RecommendationMean.Raw != nil && fd.RecommendationKey != "" {
			info["rating"] = formatRating(*fd.RecommendationMean.Raw, fd.RecommendationKey)
		}
		put(info, "num_analysts", fd.NumberOfAnalystOpinions.Raw)
	}

	if ks := r.DefaultKeyStatistics; ks != nil {
		put(info, "pb_ratio", ks.PriceToBook.Raw)
		put(info, "ev_to_ebitda", ks.EnterpriseToEbitda.Raw)
		put(info, "ev_to_revenue", ks.EnterpriseToRevenue.Raw)
		put(info, "eps_ttm", ks.TrailingEps.Raw)
		put(info, "eps_ntm", ks.ForwardEps.Raw)
		put(info, "peg_ratio", ks.PegRatio.Raw)
		putPct(info, "earnings_growth_quarterly", ks.EarningsQuarterly.Raw)
	}

	// FCF yield is derived, not reported.
	if fcf, okF := info["free_cash_flow"].(float64); okF {
		if mc, okM := info["market_cap"].(float64); okM && mc != 0 && fcf != 0 {
			info["fcf_yield"] = round2(fcf / mc * 100)
		}
	}

	return info
}

func put(info map[string]interface{}, key string, v *float64) {
	if v != nil {
		info[key] = *v
	}
}

// putPct converts decimal fractions to percentages (0.47 -> 47.0).
func putPct(info map[string]interface{}, key string, v *float64) {
	if v != nil {
		info[key] = round2(*v * 100)
	}
}

// formatRating renders "2.4 - Buy" from the recommendation mean and key
// ("buy", "strong_buy"). The leading numeric is load-bearing for scoring.
func formatRating(mean float64, key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return fmt.Sprintf("%.1f - %s", mean, strings.Join(words, " "))
}
