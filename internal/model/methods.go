package model

import "sort"

// interceptedMethods is the fixed set of wallet operations subject to
// mandatory review before forwarding. Anything else passes through.
var interceptedMethods = map[string]bool{
	"eth_sendTransaction":    true,
	"eth_signTransaction":    true,
	"eth_sendRawTransaction": true,
	"eth_sign":               true,
	"personal_sign":          true,
	"eth_signTypedData":      true,
	"eth_signTypedData_v1":   true,
	"eth_signTypedData_v3":   true,
	"eth_signTypedData_v4":   true,
}

// Intercepted reports whether the method requires review.
func Intercepted(method string) bool {
	return interceptedMethods[method]
}

// InterceptedMethods returns the intercepted method names, sorted.
func InterceptedMethods() []string {
	out := make([]string, 0, len(interceptedMethods))
	for m := range interceptedMethods {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
