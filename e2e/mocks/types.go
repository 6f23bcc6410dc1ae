package mocks

// Bar is one daily OHLCV bar served by the chart endpoint.
type Bar struct {
	Timestamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// QuoteSummary is the metadata served by the quote summary endpoint.
type QuoteSummary struct {
	LongName      string
	MarketCap     float64
	TrailingPE    float64
	DividendYield float64
	AverageVolume float64
}

// Overview is the Alpha Vantage company overview payload.
type Overview struct {
	Symbol        string `json:"Symbol"`
	Name          string `json:"Name"`
	Exchange      string `json:"Exchange"`
	Currency      string `json:"Currency"`
	MarketCap     string `json:"MarketCapitalization"`
	PERatio       string `json:"PERatio"`
	DividendYield string `json:"DividendYield"`
	Week52High    string `json:"52WeekHigh"`
	Week52Low     string `json:"52WeekLow"`
}

// rawValue is the {"raw": ...} wrapper of quote summary numbers. A nil Raw
// is served as an empty object.
type rawValue struct {
	Raw *float64 `json:"raw,omitempty"`
}

func raw(v float64) rawValue {
	if v == 0 {
		return rawValue{}
	}
	return rawValue{Raw: &v}
}

type chartResponse struct {
	Chart chartBody `json:"chart"`
}

type chartBody struct {
	Result []chartResult `json:"result"`
	Error  *apiError     `json:"error"`
}

type chartResult struct {
	Meta       chartMeta       `json:"meta"`
	Timestamp  []int64         `json:"timestamp"`
	Indicators chartIndicators `json:"indicators"`
}

type chartMeta struct {
	Symbol   string `json:"symbol"`
	Currency string `json:"currency"`
	LongName string `json:"longName"`
}

type chartIndicators struct {
	Quote []chartQuote `json:"quote"`
}

type chartQuote struct {
	Open   []float64 `json:"open"`
	High   []float64 `json:"high"`
	Low    []float64 `json:"low"`
	Close  []float64 `json:"close"`
	Volume []int64   `json:"volume"`
}

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []quoteSummaryResult `json:"result"`
		Error  *apiError            `json:"error"`
	} `json:"quoteSummary"`
}

type quoteSummaryResult struct {
	Price struct {
		LongName  string   `json:"longName"`
		MarketCap rawValue `json:"marketCap"`
	} `json:"price"`
	SummaryDetail struct {
		TrailingPE    rawValue `json:"trailingPE"`
		DividendYield rawValue `json:"dividendYield"`
		AverageVolume rawValue `json:"averageVolume"`
	} `json:"summaryDetail"`
}

// chatRequest is the subset of an OpenAI chat completion request the mock reads.
type chatRequest struct {
	Model          string `json:"model"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}
