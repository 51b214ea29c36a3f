// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cluster

import (
	"fmt"
	"sort"
	"strings"

	"github.com/grailbio/bigmachine"
	"github.com/grailbio/bigmachine/ec2system"
	"github.com/grailbio/bigmachine/testsystem"
)

// DefaultInstanceType is the EC2 instance type used by the "ec2"
// system.
const DefaultInstanceType = "m5.2xlarge"

// Internal names the pseudo-system under which ranks are goroutines in
// the driver process instead of bigmachine machines.
const Internal = "internal"

var systems = map[string]func() bigmachine.System{
	"local": func() bigmachine.System { return bigmachine.Local },
	"test":  func() bigmachine.System { return testsystem.New() },
	"ec2": func() bigmachine.System {
		return &ec2system.System{InstanceType: DefaultInstanceType}
	},
}

// Systems returns the names of the available systems, including
// Internal.
func Systems() []string {
	names := []string{Internal}
	for name := range systems {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// System returns the bigmachine system with the provided name:
//
//	local  each rank is a separate process on this machine
//	test   ranks are simulated in-process, through bigmachine's RPC layer
//	ec2    each rank is an EC2 instance
//
// System returns an error for Internal, which has no bigmachine
// system.
func System(name string) (bigmachine.System, error) {
	mk, ok := systems[name]
	if !ok {
		return nil, fmt.Errorf("unknown system %q (available: %s)", name, strings.Join(Systems(), ", "))
	}
	return mk(), nil
}
