// Package cos: human-readable id generation for log lines (connection
// ids, stream ids). Not used for anything security-sensitive — SVCUID
// generation lives in ipc and reads raw entropy directly, never this.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"crypto/rand"

	"github.com/OneOfOne/xxhash"
	"github.com/teris-io/shortid"

	"github.com/aws-greengrass-lite/corebus/cmn/debug"
)

// alphabet for generated ids, same cardinality trick as shortid's default
// so GenTie's bit-shifts below stay in range (len > 0x3f).
const idABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

var (
	sid  *shortid.Shortid
	rtie uint32
)

func init() {
	var seed [8]byte
	_, _ = rand.Read(seed[:])
	s := xxhash.Checksum64(seed[:])
	var err error
	sid, err = shortid.New(1, idABC, s)
	debug.AssertNoErr(err)
}

// GenID returns a short, log-friendly identifier (connection id, stream
// id) — not cryptographically meaningful, purely for correlating log
// lines across a session.
func GenID() string {
	id, err := sid.Generate()
	debug.AssertNoErr(err)
	return id
}

// GenTie returns a 3-character tie-breaker, used to disambiguate two ids
// generated in the same tick.
func GenTie() string {
	rtie++
	tie := rtie
	b0 := idABC[tie&0x3f]
	b1 := idABC[(^tie)&0x3f]
	b2 := idABC[(tie>>2)&0x3f]
	return string([]byte{b0, b1, b2})
}
