package engine

// Stop 停止连接并等待拆除完成；可重复、可并发调用，断开通知至多触发一次
// 在连接自己的 lane 上调用时同步执行
func (c *Conn) Stop() {
	c.stops.Add(1)
	done := make(chan struct{})
	c.lane.Dispatch(func() {
		c.stop()
		close(done)
	})
	<-done
}

func (c *Conn) stop() {
	c.userStopped = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.reconnectTries = 0
	c.disconnect(nil)
}

// disconnect 从 started 或 starting 进入 stopping，拆除后进入 stopped
// 不在这两个状态时什么也不做
func (c *Conn) disconnect(err error) {
	wasStarted := c.state.cas(StateStarted, StateStopping)
	if !wasStarted && !c.state.cas(StateStarting, StateStopping) {
		return
	}

	// 使所有在途步骤与接收循环的回投失效
	c.gen++
	c.connectTimer.Stop()
	c.connectTimer = nil
	c.silenceTimer.Stop()
	c.silenceTimer = nil
	if c.cancel != nil {
		c.cancel()
	}
	if c.sock != nil {
		c.sock.Close()
		c.sock = nil
	}

	c.abortConnect()
	if c.calls != nil {
		c.calls.FailAll(ErrNotConnected)
		c.calls = nil
	}

	if wasStarted {
		c.metrics.IncDisconnects()
		c.metrics.AddActive(-1)
		if err != nil {
			c.log.Debug("disconnected: %v", err)
		} else {
			c.log.Debug("stopped")
		}
		c.fireDisconnect(err)
	}
	c.addrs.Store(nil)
	c.state.store(StateStopped)

	switch c.role {
	case roleClient:
		if !c.userStopped && c.cfg.EnableReconnect {
			c.scheduleReconnect(err)
		}
	case roleSession:
		if h := c.owner; h != nil {
			c.owner = nil
			h.Release()
		}
	}
}

// scheduleReconnect 按退避延迟在 lane 上重新发起连接
func (c *Conn) scheduleReconnect(cause error) {
	rc := c.cfg.reconnectConfig()
	c.reconnectTries++
	if rc.MaxRetries > 0 && c.reconnectTries > rc.MaxRetries {
		c.metrics.IncReconnectGaveUp()
		c.log.Warn("reconnect to %s:%s gave up after %d attempts: %v", c.host, c.port, rc.MaxRetries, cause)
		c.reconnectTries = 0
		return
	}
	delay := rc.Backoff(c.reconnectTries)
	c.log.Info("reconnect #%d to %s:%s in %v", c.reconnectTries, c.host, c.port, delay)
	c.reconnectTimer = c.lane.After(delay, func() {
		c.reconnectTimer = nil
		if c.userStopped {
			return
		}
		err := c.enqueue(func(*Guard) {
			if c.userStopped || !c.state.cas(StateStopped, StateStarting) {
				return
			}
			c.metrics.IncReconnectAttempts()
			c.beginConnect()
		})
		if err != nil {
			c.scheduleReconnect(err)
		}
	})
}

// abortConnect 结束被 Stop 打断的连接尝试：只完成 startDone，不触发连接通知
func (c *Conn) abortConnect() {
	if !c.pendingConnect {
		return
	}
	c.pendingConnect = false
	if c.role == roleSession {
		c.metrics.IncSessionsDropped()
	}
	c.log.Debug("connect %s:%s aborted", c.host, c.port)
	if done := c.startDone; done != nil {
		c.startDone = nil
		done(ErrAborted)
	}
}
