// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

/*
	Package parreduce collects implementations of one computation, the
	mean of a large dense matrix, under several models of parallelism,
	together with a spatial statistics tool for gridded climate data.

	The computation is always a partitioned reduction: the matrix is
	divided among workers, each worker reduces its share to a partial
	(sum, count) pair, and the partials are combined. The models differ
	in how work is divided and how partials meet:

	Package reduce implements the shared-memory strategies on a fixed
	team of threads (package team): explicit threads, an automatically
	split parallel loop, and critical-section merging with static or
	cyclic schedules. Package race demonstrates what goes wrong when a
	shared accumulator is updated without synchronization.

	Package mpi implements message passing between ranks that share no
	memory: point to point messages and the collectives Bcast, Scatter,
	Gather, Reduce, Allreduce and Barrier. Package cluster runs ranks as
	separate processes on bigmachine, so that a reduction is distributed
	across machines and then across the threads of each machine.

	Package matmul times a thread-configured matrix product, package
	bench times repeated runs, and package spatialstats computes time
	series of spatial means and variances from NetCDF files.

	The commands parbench and spatialstats expose all of these on the
	command line.
*/
package parreduce
