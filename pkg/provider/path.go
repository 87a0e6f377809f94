package provider

import "github.com/itchyny/gojq"

func mustCompilePath(src string) *gojq.Code {
	q, err := gojq.Parse(src)
	if err != nil {
		panic(err)
	}
	code, err := gojq.Compile(q)
	if err != nil {
		panic(err)
	}
	return code
}

// extractString runs a compiled path against a decoded JSON value and returns
// the first result if it is a string. Path errors (indexing a string, etc.)
// come back from gojq as error values and yield "". gojq panics on values that
// did not come from encoding/json, so those are recovered as "" too.
func extractString(code *gojq.Code, body any) (s string) {
	if body == nil {
		return ""
	}
	defer func() {
		if recover() != nil {
			s = ""
		}
	}()
	v, ok := code.Run(body).Next()
	if !ok {
		return ""
	}
	s, _ = v.(string)
	return s
}
