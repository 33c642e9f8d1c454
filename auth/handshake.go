// Package auth implements the MySQL/MariaDB connection-phase handshake and
// the mysql_native_password challenge-response (spec §4.2). Non-goals per
// spec §1: SSL/TLS and any auth plugin other than mysql_native_password.
package auth

import (
	"bytes"
	"crypto/sha1" //nolint:gosec // mysql_native_password is defined in terms of SHA-1
	"encoding/binary"
	"fmt"
)

const minProtocolVersion = 10

const nativePasswordPlugin = "mysql_native_password"

// Capability bits, spec §6. Only the bits this library ever sets or
// inspects are named.
type Capability uint32

const (
	CapLongPassword    Capability = 1 << 0
	CapFoundRows       Capability = 1 << 1
	CapLongFlag        Capability = 1 << 2
	CapConnectWithDB   Capability = 1 << 3
	CapLocalFiles      Capability = 1 << 7
	CapProtocol41      Capability = 1 << 9
	CapSSL             Capability = 1 << 11
	CapTransactions    Capability = 1 << 13
	CapSecureConn      Capability = 1 << 15
	CapMultiStatements Capability = 1 << 16
	CapMultiResults    Capability = 1 << 17
	CapPSMultiResults  Capability = 1 << 18
	CapPluginAuth      Capability = 1 << 19
	CapDeprecateEOF    Capability = 1 << 24
)

// clientCapabilities is the fixed capability word this library advertises,
// per spec §6's required list.
const clientCapabilities = CapLongPassword | CapLongFlag | CapConnectWithDB |
	CapLocalFiles | CapProtocol41 | CapDeprecateEOF | CapTransactions | CapSecureConn |
	CapMultiStatements | CapMultiResults | CapPSMultiResults | CapPluginAuth

// Handshake is the parsed initial handshake packet (spec §4.2).
type Handshake struct {
	ProtocolVersion byte
	ServerVersion   string
	Nonce           []byte // nonce-1 || nonce-2, up to 20 bytes
	Capabilities    uint32
	Plugin          string
}

// ErrUnsupportedProtocol is returned when the server's protocol version is
// older than this library supports.
type ErrUnsupportedProtocol struct{ Version byte }

func (e *ErrUnsupportedProtocol) Error() string {
	return fmt.Sprintf("auth: unsupported protocol version %d, need >= %d", e.Version, minProtocolVersion)
}

// ErrUnsupportedPlugin is returned when the server names an auth plugin
// other than mysql_native_password.
type ErrUnsupportedPlugin struct{ Plugin string }

func (e *ErrUnsupportedPlugin) Error() string {
	return fmt.Sprintf("auth: unsupported auth plugin %q, only mysql_native_password is supported", e.Plugin)
}

// ParseHandshake decodes the server's initial handshake packet.
// Ground: go-sql-driver/mysql's readHandshakePacket, restructured to
// return a value type instead of mutating connection state, and
// cross-checked field-by-field against db-bouncer's authenticateMySQL
// (an independent re-implementation of the same offsets).
func ParseHandshake(data []byte) (Handshake, error) {
	if len(data) < 1 {
		return Handshake{}, fmt.Errorf("auth: empty handshake packet")
	}
	if data[0] < minProtocolVersion {
		return Handshake{}, &ErrUnsupportedProtocol{Version: data[0]}
	}

	pos := 1
	versionEnd := bytes.IndexByte(data[pos:], 0x00)
	if versionEnd < 0 {
		return Handshake{}, fmt.Errorf("auth: malformed server version")
	}
	serverVersion := string(data[pos : pos+versionEnd])
	pos += versionEnd + 1

	pos += 4 // thread id, ignored
	if pos+8 > len(data) {
		return Handshake{}, fmt.Errorf("auth: handshake packet too short (nonce-1)")
	}
	nonce := append([]byte(nil), data[pos:pos+8]...)
	pos += 8
	pos++ // filler

	if pos+2 > len(data) {
		return Handshake{}, fmt.Errorf("auth: handshake packet too short (capabilities)")
	}
	capsLow := uint32(binary.LittleEndian.Uint16(data[pos : pos+2]))
	pos += 2
	if capsLow&uint32(CapProtocol41) == 0 {
		return Handshake{}, fmt.Errorf("auth: server does not support protocol 4.1")
	}

	var caps uint32 = capsLow
	var plugin string
	if len(data) > pos {
		pos += 1 + 2 // charset, status flags
		if pos+2 > len(data) {
			return Handshake{}, fmt.Errorf("auth: handshake packet too short (capabilities high)")
		}
		capsHigh := uint32(binary.LittleEndian.Uint16(data[pos : pos+2]))
		caps = capsLow | capsHigh<<16
		pos += 2

		if pos >= len(data) {
			return Handshake{}, fmt.Errorf("auth: handshake packet too short (auth-plugin-data length)")
		}
		authPluginDataLen := int(data[pos])
		pos++
		pos += 10 // reserved

		part2Len := authPluginDataLen - 8
		if part2Len < 13 {
			part2Len = 13
		}
		if pos+part2Len > len(data) {
			return Handshake{}, fmt.Errorf("auth: handshake packet too short (nonce-2)")
		}
		nonce = append(nonce, data[pos:pos+part2Len]...)
		pos += part2Len

		if end := bytes.IndexByte(data[pos:], 0x00); end != -1 {
			plugin = string(data[pos : pos+end])
		} else {
			plugin = string(data[pos:])
		}
	}

	// nonce-2 as transmitted includes a trailing NUL terminator; trim it so
	// the scramble used for hashing matches the server's.
	if n := len(nonce); n > 0 && nonce[n-1] == 0 {
		nonce = nonce[:n-1]
	}

	return Handshake{
		ProtocolVersion: data[0],
		ServerVersion:   serverVersion,
		Nonce:           nonce,
		Capabilities:    caps,
		Plugin:          plugin,
	}, nil
}

// NativePasswordResponse computes the mysql_native_password challenge
// response: SHA1(password) XOR SHA1(nonce || SHA1(SHA1(password))).
// An empty password yields an empty response, matching server behavior for
// anonymous auth.
func NativePasswordResponse(password string, nonce []byte) []byte {
	if len(password) == 0 {
		return nil
	}
	h1 := sha1.Sum([]byte(password))
	h2 := sha1.Sum(h1[:])
	h := sha1.New() //nolint:gosec
	h.Write(nonce)
	h.Write(h2[:])
	h3 := h.Sum(nil)
	out := make([]byte, len(h1))
	for i := range out {
		out[i] = h1[i] ^ h3[i]
	}
	return out
}

// HandshakeResponse holds the fields needed to build a HandshakeResponse41
// packet body (without the packet header).
type HandshakeResponse struct {
	User         string
	Password     string
	Database     string
	Handshake    Handshake
	MaxPacket    uint32
	CharsetID    byte
}

// BuildResponse encodes a HandshakeResponse41 packet body (spec §4.2).
// Ground: go-sql-driver/mysql's writeHandshakeResponsePacket, simplified to
// the capability set this library always sends (no SSL, no connect
// attributes, no compression) and restricted to mysql_native_password per
// spec's Non-goals.
func BuildResponse(r HandshakeResponse) ([]byte, error) {
	plugin := r.Handshake.Plugin
	if plugin == "" {
		plugin = nativePasswordPlugin
	}
	if plugin != nativePasswordPlugin {
		return nil, &ErrUnsupportedPlugin{Plugin: plugin}
	}

	authResp := NativePasswordResponse(r.Password, r.Handshake.Nonce)

	caps := uint32(clientCapabilities)
	if r.Database != "" {
		caps |= uint32(CapConnectWithDB)
	}

	buf := make([]byte, 0, 64+len(r.User)+len(r.Database)+len(authResp))
	var capBuf [4]byte
	binary.LittleEndian.PutUint32(capBuf[:], caps)
	buf = append(buf, capBuf[:]...)

	maxPacket := r.MaxPacket
	if maxPacket == 0 {
		maxPacket = 0x01000000
	}
	var mp [4]byte
	binary.LittleEndian.PutUint32(mp[:], maxPacket)
	buf = append(buf, mp[:]...)

	charset := r.CharsetID
	if charset == 0 {
		charset = 45 // utf8mb4_general_ci
	}
	buf = append(buf, charset)
	buf = append(buf, make([]byte, 23)...) // filler

	buf = append(buf, r.User...)
	buf = append(buf, 0x00)

	buf = append(buf, byte(len(authResp)))
	buf = append(buf, authResp...)

	if r.Database != "" {
		buf = append(buf, r.Database...)
		buf = append(buf, 0x00)
	}

	buf = append(buf, plugin...)
	buf = append(buf, 0x00)

	return buf, nil
}
