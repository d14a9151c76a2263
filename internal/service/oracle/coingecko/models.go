package coingecko

import (
	"encoding/json"
	"net/url"
	"path"
)

// simplePriceResp is the /simple/price body, e.g. {"ethereum":{"usd":2500.12}}.
// Prices are kept raw so they can be parsed without float rounding.
type simplePriceResp map[string]map[string]json.RawMessage

type errorResp struct {
	Error  string `json:"error"`
	Status struct {
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
}

func bestEffortExtractError(body []byte) string {
	var resp errorResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return ""
	}

	if resp.Error != "" {
		return resp.Error
	} else if resp.Status.ErrorMessage != "" {
		return resp.Status.ErrorMessage
	}

	return ""
}

func urlJoin(baseURL string, segments ...string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return baseURL
	}

	u.Path = path.Join(append([]string{u.Path}, segments...)...)
	return u.String()
}
