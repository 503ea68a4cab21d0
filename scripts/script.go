//go:build ignore

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

func main() {
	data, _ := io.ReadAll(os.Stdin)
	fmt.Printf("received: %s\n", strings.TrimSpace(string(data)))
}
