package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// confirm asks the user to type "yes". When stdin is not a terminal and no
// input was injected, there is nobody to ask and the answer is no.
func confirm(cmd *cobra.Command, warning string) bool {
	out := cmd.OutOrStdout()
	in := cmd.InOrStdin()
	if in == os.Stdin && !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(out, "Refusing to continue without a terminal; pass --yes.")
		return false
	}

	fmt.Fprintln(out, "WARNING:", warning)
	fmt.Fprintln(out, "This action cannot be undone.")
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}

// colorEnabled reports whether stdout is a terminal that should get styled
// output. NO_COLOR always wins.
func colorEnabled(cmd *cobra.Command) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := cmd.OutOrStdout().(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
