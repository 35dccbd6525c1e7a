package healthplanet

// Measurement is a single innerscan sample, exactly as the API returns it.
// Date is YYYYMMDDHHMMSS (or just YYYYMMDD), KeyData is a decimal number as
// text, Tag is the metric code (6021 weight kg, 6022 body fat percent).
type Measurement struct {
	Date    string `json:"date"`
	KeyData string `json:"keydata"`
	Model   string `json:"model"`
	Tag     string `json:"tag"`
}

type InnerscanResponse struct {
	BirthDate string        `json:"birth_date"`
	Height    string        `json:"height"`
	Sex       string        `json:"sex"`
	Data      []Measurement `json:"data"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
