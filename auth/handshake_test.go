package auth

import (
	"bytes"
	"testing"
)

func buildHandshakePacket(nonce1, nonce2 []byte, plugin string) []byte {
	data := []byte{10} // protocol version
	data = append(data, "5.7.0-test"...)
	data = append(data, 0x00)
	data = append(data, 0, 0, 0, 0) // thread id
	data = append(data, nonce1...)
	data = append(data, 0x00) // filler
	data = append(data, byte(clientCapabilities&0xff), byte(clientCapabilities>>8&0xff))
	data = append(data, 0x21)       // charset
	data = append(data, 2, 0)       // status flags
	data = append(data, byte(clientCapabilities>>16&0xff), byte(clientCapabilities>>24&0xff))
	data = append(data, byte(len(nonce1)+len(nonce2)+1))
	data = append(data, make([]byte, 10)...) // reserved
	data = append(data, nonce2...)
	data = append(data, 0x00) // nonce-2 terminator
	data = append(data, plugin...)
	data = append(data, 0x00)
	return data
}

func TestParseHandshake(t *testing.T) {
	nonce1 := []byte("12345678")
	nonce2 := []byte("123456789012")
	pkt := buildHandshakePacket(nonce1, nonce2, nativePasswordPlugin)

	hs, err := ParseHandshake(pkt)
	if err != nil {
		t.Fatal(err)
	}
	if hs.Plugin != nativePasswordPlugin {
		t.Fatalf("plugin = %q", hs.Plugin)
	}
	want := append(append([]byte{}, nonce1...), nonce2...)
	if !bytes.Equal(hs.Nonce, want) {
		t.Fatalf("nonce = %x, want %x", hs.Nonce, want)
	}
}

func TestParseHandshakeOldProtocol(t *testing.T) {
	_, err := ParseHandshake([]byte{9})
	if err == nil {
		t.Fatal("expected error for protocol version < 10")
	}
}

func TestNativePasswordResponseEmptyPassword(t *testing.T) {
	if r := NativePasswordResponse("", []byte("noncenoncenonceno")); r != nil {
		t.Fatalf("expected nil response for empty password, got %x", r)
	}
}

func TestBuildResponseRejectsOtherPlugins(t *testing.T) {
	_, err := BuildResponse(HandshakeResponse{
		Handshake: Handshake{Plugin: "caching_sha2_password"},
	})
	if err == nil {
		t.Fatal("expected error for unsupported plugin")
	}
}

func TestBuildResponseShape(t *testing.T) {
	hs := Handshake{Plugin: nativePasswordPlugin, Nonce: []byte("0123456789012345678")}
	body, err := BuildResponse(HandshakeResponse{
		User:      "root",
		Password:  "secret",
		Database:  "test",
		Handshake: hs,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(body, []byte("root\x00")) {
		t.Fatal("response missing user")
	}
	if !bytes.Contains(body, []byte("test\x00"+nativePasswordPlugin+"\x00")) {
		t.Fatal("response missing database/plugin trailer")
	}
}
