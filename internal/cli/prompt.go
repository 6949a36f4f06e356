package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword is swapped out in tests.
var readPassword = term.ReadPassword

// promptLine prints label and returns the trimmed answer, or def when the
// answer is empty.
func promptLine(reader *bufio.Reader, label, def string) string {
	if def != "" {
		fmt.Printf("%s [%s]: ", label, def)
	} else {
		fmt.Printf("%s: ", label)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return def
	}
	return input
}

// promptYesNo asks a y/N question. Anything but y/yes is no.
func promptYesNo(reader *bufio.Reader, label string) bool {
	answer := strings.ToLower(promptLine(reader, label+" [y/N]", ""))
	return answer == "y" || answer == "yes"
}

// promptSecret reads a value without echo when stdin is a terminal and
// falls back to a plain line read otherwise.
func promptSecret(reader *bufio.Reader, label string) (string, error) {
	fmt.Printf("%s: ", label)
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		input, err := reader.ReadString('\n')
		if err != nil && input == "" {
			return "", err
		}
		return strings.TrimSpace(input), nil
	}
	b, err := readPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
