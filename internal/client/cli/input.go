package cli

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// readPasswordFn is a test seam for reading a secret without echo.
var readPasswordFn = func() ([]byte, error) {
	return term.ReadPassword(int(os.Stdin.Fd()))
}

func GetPassword(prompt string) ([]byte, error) {
	fmt.Println(prompt)
	return readPasswordFn()
}
