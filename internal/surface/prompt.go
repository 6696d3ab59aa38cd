package surface

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/pvanko/walletgate/internal/model"
	"github.com/pvanko/walletgate/internal/risk"
)

// IsInteractive reports whether stdin is a terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Ask presents one request on the terminal and reads an approve/reject
// choice. The second return is false when no decision was taken: a
// non-interactive session never decides on the user's behalf.
func Ask(req model.InterceptedRequest, sum *RiskSummary) (model.Outcome, bool) {
	if !IsInteractive() {
		return "", false
	}

	out := os.Stderr
	writeBanner(out, req, sum)

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Fprint(out, "Your choice [a/r]: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return "", false
		}
		switch strings.TrimSpace(strings.ToLower(input)) {
		case "a", "approve", "y", "yes":
			return model.OutcomeApprove, true
		case "r", "reject", "n", "no":
			return model.OutcomeReject, true
		default:
			fmt.Fprintln(out, "Enter 'a' to approve or 'r' to reject.")
		}
	}
}

// writeBanner renders the request the reviewer is deciding on. Wei
// quantities are shown in decimal whatever encoding the dapp used.
func writeBanner(out io.Writer, req model.InterceptedRequest, sum *RiskSummary) {
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "=== signing request awaiting decision ===")
	fmt.Fprintf(out, "Method:  %s\n", req.Method)
	if req.Origin != "" {
		fmt.Fprintf(out, "Origin:  %s\n", req.Origin)
	}
	fmt.Fprintf(out, "ID:      %s\n", req.CorrelationID)

	tx := risk.FromRequest(&req)
	if tx.To != "" {
		fmt.Fprintf(out, "To:      %s\n", tx.To)
	}
	if tx.Value != "" {
		fmt.Fprintf(out, "Value:   %s wei\n", risk.ParseQuantity(tx.Value))
	}
	if len(req.Params) > 0 {
		fmt.Fprintf(out, "Params:  %s\n", truncate(string(req.Params), 400))
	}

	if sum != nil && sum.Tx != nil {
		fmt.Fprintf(out, "Risk:    %.2f", sum.Tx.Score)
		if sum.Tx.Score >= 0.7 {
			fmt.Fprint(out, "  (!) likely scam")
		}
		fmt.Fprintln(out, "")
		if sum.Tx.Explanation != "" {
			fmt.Fprintf(out, "Note:    %s\n", sum.Tx.Explanation)
		}
	}
	if sum != nil && sum.Account != nil {
		fmt.Fprintf(out, "Counterparty risk: %.2f", sum.Account.Score)
		if sum.Account.Score >= 0.7 {
			fmt.Fprint(out, "  (!) flagged address")
		}
		fmt.Fprintln(out, "")
	}

	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "  [a] approve - forward to the wallet")
	fmt.Fprintln(out, "  [r] reject  - refuse the request")
	fmt.Fprintln(out, "")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
