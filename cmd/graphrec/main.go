/*
graphrec 是推荐引擎的命令行入口。

用法：

	graphrec train     --edges edges.csv
	graphrec recommend --user 1 --top-k 10
	graphrec coldstart --genres Action,Drama --seeds 101,102
	graphrec explain   --item 101 --user 1
	graphrec schedule  --metrics-addr :9100

配置按 默认值 → --config 指定的 YAML → GRAPHREC_ 环境变量 的顺序加载。
*/
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
