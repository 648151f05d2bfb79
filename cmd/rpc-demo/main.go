// cmd/rpc-demo — two RPC endpoints over an in-memory loopback: the client
// asks the server to add two numbers, the server answers, both sides are
// pumped by a superloop.
package main

import (
	"encoding/binary"

	"github.com/sirupsen/logrus"

	"embedcore-go/rpc"
	"embedcore-go/rpc/checksum"
	"embedcore-go/transport/loopback"
)

const cmdSum = 0x01

func main() {
	logrus.SetLevel(logrus.InfoLevel)
	log := logrus.WithField("mod", "rpc-demo")

	clientEnd, serverEnd := loopback.NewPair(1024)

	var server rpc.Context
	serverCmds := []rpc.Command{{
		ID: cmdSum,
		Fn: func(h *rpc.Header, payload []byte) {
			a := binary.BigEndian.Uint32(payload[0:4])
			b := binary.BigEndian.Uint32(payload[4:8])
			log.Infof("server: sum(%d, %d)", a, b)
			resp := make([]byte, 4)
			binary.BigEndian.PutUint32(resp, a+b)
			if err := server.CreateResponse(cmdSum, h.UUID, resp); err != nil {
				log.Warnf("server: response failed: %v", err)
			}
		},
	}}
	if err := server.Init(serverCmds, make([]byte, 1024), make([]byte, 1024)); err != nil {
		log.Fatal(err)
	}
	server.SetComm(serverEnd)
	server.SetCrc(checksum.XXHash32{})

	done := false
	var client rpc.Context
	clientCmds := []rpc.Command{{
		ID: cmdSum,
		Fn: func(h *rpc.Header, payload []byte) {
			log.Infof("client: result = %d", binary.BigEndian.Uint32(payload))
			done = true
		},
	}}
	if err := client.Init(clientCmds, make([]byte, 1024), make([]byte, 1024)); err != nil {
		log.Fatal(err)
	}
	client.SetComm(clientEnd)
	client.SetCrc(checksum.XXHash32{})

	req := make([]byte, 8)
	binary.BigEndian.PutUint32(req[0:4], 2)
	binary.BigEndian.PutUint32(req[4:8], 3)
	if err := client.CreateRequest(cmdSum, req); err != nil {
		log.Fatal(err)
	}

	for !done {
		client.Run()
		server.Run()
	}
}
