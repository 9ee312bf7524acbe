package main

import (
	"bufio"
	"crypto/sha256"
	"flag"
	"fmt"
	stdlog "log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Chevalier11/asio2/engine"
	"github.com/Chevalier11/asio2/log"
	"github.com/Chevalier11/asio2/match"
	"github.com/Chevalier11/asio2/secure"
	"github.com/Chevalier11/asio2/socks5"
	"github.com/Chevalier11/asio2/transport"
)

func main() {
	// 1. 解析命令行参数
	listen := flag.String("l", "", "监听地址 host:port（服务端模式）")
	connect := flag.String("connect", "", "连接地址 host:port（客户端模式）")
	network := flag.String("t", "tcp", "传输: tcp | udp | kcp | ws")
	secret := flag.String("s", "", "安全通道口令（为空则明文）")
	proxyAddr := flag.String("proxy", "", "SOCKS5 代理地址 host:port")
	level := flag.String("log", "warn", "日志级别: debug | info | warn | error | silent")
	reconnect := flag.Bool("reconnect", false, "客户端断开后自动重连")
	flag.Parse()

	if (*listen == "") == (*connect == "") {
		fmt.Fprintln(os.Stderr, "必须且只能指定 -l 或 -connect 之一")
		flag.Usage()
		os.Exit(2)
	}

	tr, err := newTransport(*network)
	if err != nil {
		stdlog.Fatalf("%v", err)
	}

	lvl, err := log.ParseLevel(*level)
	if err != nil {
		stdlog.Fatalf("%v", err)
	}
	logger := log.NewStdLogger(log.WithLevel(lvl), log.WithPrefix("[basic]"))

	// 2. 附加参数：按行分帧，可选安全通道与代理
	args := []any{match.Delim('\n')}
	if *secret != "" {
		opt, err := secureOption(*secret)
		if err != nil {
			stdlog.Fatalf("%v", err)
		}
		args = append(args, opt)
	}

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithReconnect(*reconnect),
	}

	if *listen != "" {
		runServer(tr, *listen, opts, args)
		return
	}

	if *proxyAddr != "" {
		host, port, err := net.SplitHostPort(*proxyAddr)
		if err != nil {
			stdlog.Fatalf("代理地址无效: %v", err)
		}
		args = append(args, socks5.Option{Host: host, Port: port})
	}
	runClient(tr, *connect, opts, args)
}

func newTransport(name string) (transport.Transport, error) {
	switch name {
	case "tcp":
		return transport.NewTCP(), nil
	case "udp":
		return transport.NewUDP(), nil
	case "kcp":
		return transport.NewKCP(nil), nil
	case "ws":
		return transport.NewWS(), nil
	default:
		return nil, fmt.Errorf("未知传输: %s", name)
	}
}

// secureOption 由口令派生静态密钥，口令同时作为 prologue，双方口令不同则握手失败
func secureOption(secret string) (secure.Option, error) {
	seed := sha256.Sum256([]byte("basic-demo:" + secret))
	kp, err := secure.KeypairFromSeed(seed)
	if err != nil {
		return secure.Option{}, err
	}
	return secure.Option{Keypair: kp, Prologue: []byte(secret)}, nil
}

func runServer(tr transport.Transport, addr string, opts []engine.Option, args []any) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		stdlog.Fatalf("监听地址无效: %v", err)
	}

	opts = append(opts,
		engine.WithOnConnect(func(c *engine.Conn, _ error) {
			fmt.Printf("[系统] 会话 %s 来自 %s\n", c.ID()[:8], c.RemoteAddr())
		}),
		engine.WithOnRecv(func(c *engine.Conn, msg []byte) {
			fmt.Printf("[接收] <%s>: %s", c.ID()[:8], msg)
			c.AsyncSend(msg)
		}),
		engine.WithOnDisconnect(func(c *engine.Conn, err error) {
			fmt.Printf("[系统] 会话 %s 断开: %v\n", c.ID()[:8], err)
		}),
	)
	srv, err := engine.NewServer(tr, opts...)
	if err != nil {
		stdlog.Fatalf("创建服务端失败: %v", err)
	}
	if err := srv.Start(host, port, args...); err != nil {
		stdlog.Fatalf("启动失败: %v", err)
	}
	fmt.Printf("%s 服务端监听于 %s，收到的每行都会回显\n", tr.Name(), srv.Addr())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	srv.Stop()
}

func runClient(tr transport.Transport, addr string, opts []engine.Option, args []any) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		stdlog.Fatalf("连接地址无效: %v", err)
	}

	opts = append(opts,
		engine.WithOnRecv(func(_ *engine.Conn, msg []byte) {
			fmt.Printf("\r[接收] %s> ", msg)
		}),
		engine.WithOnDisconnect(func(_ *engine.Conn, err error) {
			fmt.Printf("\r[系统] 连接断开: %v\n> ", err)
		}),
	)
	cl, err := engine.NewClient(tr, opts...)
	if err != nil {
		stdlog.Fatalf("创建客户端失败: %v", err)
	}
	defer cl.Stop()

	if err := cl.Start(host, port, args...); err != nil {
		stdlog.Fatalf("连接 %s 失败: %v", addr, err)
	}
	fmt.Printf("已连接 %s (%s)，输入内容回车发送，/quit 退出\n", cl.RemoteAddr(), tr.Name())

	// 交互式输入循环
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		switch text {
		case "":
		case "/quit":
			return
		default:
			if _, err := cl.Send(text + "\n"); err != nil {
				fmt.Printf("[错误] 发送失败: %v\n", err)
			}
		}
		fmt.Print("> ")
	}
}
