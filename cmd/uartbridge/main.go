package main

//go-build: CGO_ENABLED=0

import (
	"flag"

	"github.com/golang/glog"

	"github.com/robotalks/pingpong/pkg/env"
	fx "github.com/robotalks/pingpong/pkg/framework"
)

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	e := env.NewConfig().MustNewEnv()
	if err := e.Connect(); err != nil {
		e.Close()
		glog.Exit(err)
	}
	err := fx.NewRunner().HandleSignals().Run(fx.NewLoop().Add(e))
	if cerr := e.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		glog.Exit(err)
	}
}
