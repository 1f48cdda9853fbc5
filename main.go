package main

import (
	"fmt"
	"os"

	"github.com/gonewx/closetkingdom/pkg/cli"
	"github.com/gonewx/closetkingdom/pkg/embedded"
)

func main() {
	// 初始化嵌入资源（时间轴、演示货架）
	embedded.Init(dataFS)

	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
