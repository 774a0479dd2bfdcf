package tts

// Voice is an entry of the Vietnamese voice catalog.
type Voice struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Gender string `json:"gender"`
}

var catalog = []Voice{
	{Code: "banmai", Name: "Ban Mai (Nam miền Bắc)", Gender: "male"},
	{Code: "lannhi", Name: "Lan Nhi (Nữ miền Bắc)", Gender: "female"},
	{Code: "myan", Name: "My An (Nữ miền Nam)", Gender: "female"},
	{Code: "giahuy", Name: "Gia Huy (Nam trẻ)", Gender: "male"},
	{Code: "minhquang", Name: "Minh Quang (Nam miền Nam)", Gender: "male"},
}

// Voices returns a copy of the catalog.
func Voices() []Voice {
	out := make([]Voice, len(catalog))
	copy(out, catalog)
	return out
}

func LookupVoice(code string) (Voice, bool) {
	for _, v := range catalog {
		if v.Code == code {
			return v, true
		}
	}
	return Voice{}, false
}

// mapVoice translates a catalog code into a backend voice by gender. Codes
// outside the catalog are passed through unchanged.
func mapVoice(code, female, male string) string {
	v, ok := LookupVoice(code)
	switch {
	case code == "":
		return female
	case !ok:
		return code
	case v.Gender == "male":
		return male
	default:
		return female
	}
}
