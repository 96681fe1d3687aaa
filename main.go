// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package main

import "hpcids/cmd"

func main() {
	cmd.Execute()
}
