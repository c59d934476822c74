package main

import (
	"github.com/tanpawarit/Chative-Commerce-Tools/cmd"
	_ "github.com/tanpawarit/Chative-Commerce-Tools/pkg/logger/autoload"
)

func main() {
	cmd.Execute()
}
