package main

import (
	"github.com/coastalwhite/simpleserial/target"
	"github.com/coastalwhite/simpleserial/wire"
)

const blockSize = 16

// Handler statuses of the demo firmware.
const (
	statusNoKey  byte = 0x10
	statusLength byte = 0x11
)

// firmware is the simulated equivalent of simpleserial-base: 'k' loads a
// key, 'p' encrypts a block (XOR with the key) and 'x' clears the key.
type firmware struct {
	key    [blockSize]byte
	hasKey bool
}

func (f *firmware) setKey(data []byte) byte {
	if len(data) != blockSize {
		return statusLength
	}
	copy(f.key[:], data)
	f.hasKey = true
	return byte(wire.StatusOK)
}

func (f *firmware) encrypt(data []byte) (byte, []byte) {
	if len(data) != blockSize {
		return statusLength, nil
	}
	if !f.hasKey {
		return statusNoKey, nil
	}
	out := make([]byte, blockSize)
	for i := range out {
		out[i] = data[i] ^ f.key[i]
	}
	return byte(wire.StatusOK), out
}

func (f *firmware) reset([]byte) byte {
	f.key = [blockSize]byte{}
	f.hasKey = false
	return byte(wire.StatusOK)
}

// register adds the built-ins and the firmware commands to reg.
func (f *firmware) register(reg *target.Registry, version wire.Version) error {
	if err := target.RegisterBuiltins(reg, version); err != nil {
		return err
	}

	if version.Binary() {
		cmds := []target.Entry{
			{ID: 'k', Length: blockSize, Handler: target.V2(func(_, _ byte, data []byte) (byte, []byte) {
				return f.setKey(data), nil
			})},
			{ID: 'p', Length: blockSize, Handler: target.V2(func(_, _ byte, data []byte) (byte, []byte) {
				return f.encrypt(data)
			})},
			{ID: 'x', Length: 0, Handler: target.V2(func(_, _ byte, data []byte) (byte, []byte) {
				return f.reset(data), nil
			})},
		}
		return registerAll(reg, cmds)
	}

	return registerAll(reg, []target.Entry{
		{ID: 'k', Length: blockSize, Handler: target.V1(f.setKey)},
		{ID: 'p', Length: blockSize, Handler: target.V1Reply(f.encrypt)},
		{ID: 'x', Length: 0, Handler: target.V1(f.reset)},
	})
}

func registerAll(reg *target.Registry, cmds []target.Entry) error {
	for _, c := range cmds {
		if err := reg.Register(c.ID, c.Length, c.Handler); err != nil {
			return err
		}
	}
	return nil
}
