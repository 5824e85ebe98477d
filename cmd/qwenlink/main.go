// Command qwenlink is the DashScope / Qwen chat connector.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"qwenlink/internal/cli"
)

func main() {
	// .env 不存在时忽略
	_ = godotenv.Load()

	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
