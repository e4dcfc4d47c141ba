package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/anirudhraja/structlite"
	"github.com/anirudhraja/structlite/wire"
)

// ADB command words
const (
	cmdCNXN = 0x4e584e43
	cmdOPEN = 0x4e45504f
	cmdOKAY = 0x59414b4f
	cmdWRTE = 0x45545257

	adbVersion = 0x01000000
	maxPayload = 4096
)

// adbMessage is a decoded packet after validation
type adbMessage struct {
	Command string
	Arg0    uint32
	Arg1    uint32
	Payload []byte
}

func checksum(payload []byte) uint32 {
	var sum uint32
	for _, b := range payload {
		sum += uint32(b)
	}
	return sum
}

func commandName(cmd uint32) string {
	return string([]byte{byte(cmd), byte(cmd >> 8), byte(cmd >> 16), byte(cmd >> 24)})
}

func main() {
	// Layouts from the declarative schema
	sl := structlite.New()
	if err := sl.LoadSchema("testdata/adb.proto"); err != nil {
		log.Fatalf("Failed to load adb.proto: %v", err)
	}

	fmt.Println("Structlite Sample App - ADB packets")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("Loaded layouts:", strings.Join(sl.ListLayouts(), ", "))

	packet, err := sl.Struct("adb.Packet")
	if err != nil {
		log.Fatalf("Failed to compile adb.Packet: %v", err)
	}

	// The same layout built in code, with a validating hook and extras
	header := structlite.NewStruct().
		Uint32("command").
		Uint32("arg0").
		Uint32("arg1").
		Uint32("payload_length").
		Uint32("checksum").
		Uint32("magic")

	validated := structlite.NewStruct().
		Fields(header).
		Buffer("payload", wire.FromField("payload_length")).
		Extra(structlite.Extras{
			"name": func(o *structlite.Object) any { return commandName(o.Get("command").(uint32)) },
		}).
		PostDeserialize(func(o *structlite.Object) (any, error) {
			cmd := o.Get("command").(uint32)
			if o.Get("magic").(uint32) != cmd^0xffffffff {
				return nil, fmt.Errorf("bad magic for %s", commandName(cmd))
			}
			payload := o.Get("payload").([]byte)
			if sum := checksum(payload); sum != o.Get("checksum").(uint32) {
				return nil, fmt.Errorf("checksum %d, want %d", o.Get("checksum"), sum)
			}
			return adbMessage{
				Command: o.Get("name").(string),
				Arg0:    o.Get("arg0").(uint32),
				Arg1:    o.Get("arg1").(uint32),
				Payload: payload,
			}, nil
		})
	sl.Register("ValidatedPacket", validated)

	// Serialize a handshake with the schema layout
	banner := []byte("host::features=shell_v2,cmd\x00")
	cnxn, err := packet.Serialize(wire.Values{
		"command":  cmdCNXN,
		"arg0":     adbVersion,
		"arg1":     maxPayload,
		"checksum": checksum(banner),
		"magic":    uint32(cmdCNXN ^ 0xffffffff),
		"payload":  banner,
	})
	if err != nil {
		log.Fatalf("Failed to serialize CNXN: %v", err)
	}
	fmt.Printf("\nCNXN packet (%d bytes, header %d):\n% x\n", len(cnxn), packet.StaticSize(), cnxn[:24])

	// Parse it back with the schema layout
	obj, err := sl.Parse(cnxn, "adb.Packet")
	if err != nil {
		log.Fatalf("Failed to parse CNXN: %v", err)
	}
	fmt.Println("\nParsed with adb.Packet:")
	fmt.Println(obj)

	// Stream a few packets through the validating layout, chunked like
	// USB bulk transfers
	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("Streaming through ValidatedPacket:")

	var stream []byte
	for _, p := range []struct {
		cmd        uint32
		arg0, arg1 uint32
		payload    []byte
	}{
		{cmdOPEN, 1, 0, []byte("shell:echo hi\x00")},
		{cmdOKAY, 7, 1, nil},
		{cmdWRTE, 7, 1, []byte("hi\n")},
	} {
		b, err := validated.Serialize(wire.Values{
			"command":  p.cmd,
			"arg0":     p.arg0,
			"arg1":     p.arg1,
			"checksum": checksum(p.payload),
			"magic":    p.cmd ^ 0xffffffff,
			"payload":  append([]byte{}, p.payload...),
		})
		if err != nil {
			log.Fatalf("Failed to serialize %s: %v", commandName(p.cmd), err)
		}
		stream = append(stream, b...)
	}

	src := wire.NewStreamSource()
	go func() {
		for i := 0; i < len(stream); i += 16 {
			if err := src.Push(stream[i:min(i+16, len(stream))]); err != nil {
				log.Printf("push: %v", err)
				return
			}
			time.Sleep(time.Millisecond)
		}
		src.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := 0; i < 3; i++ {
		v, err := validated.Deserialize(src).Await(ctx)
		if err != nil {
			log.Fatalf("Failed to read packet %d: %v", i, err)
		}
		msg := v.(adbMessage)
		fmt.Printf("  %s arg0=%d arg1=%d payload=%q\n", msg.Command, msg.Arg0, msg.Arg1, msg.Payload)
	}

	// A corrupted checksum is rejected by the hook
	bad := append([]byte{}, cnxn...)
	bad[16] ^= 0xff
	if _, err := validated.Deserialize(wire.NewBufferSource(bad)).Sync(); err != nil {
		fmt.Println("\nCorrupted packet rejected:", err)
	}
}
