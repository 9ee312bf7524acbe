package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestNewCollector(t *testing.T) {
	c := NewCollector()
	if c == nil {
		t.Fatal("NewCollector 返回 nil")
	}
	if c.startTime.IsZero() {
		t.Error("startTime 未初始化")
	}
}

func TestConnectStats(t *testing.T) {
	c := NewCollector()

	c.IncConnectsTotal()
	c.IncConnectsTotal()
	c.IncConnectsFailed()
	c.IncConnectsTimedOut()
	c.RecordConnectLatency(10 * time.Millisecond)
	c.RecordConnectLatency(30 * time.Millisecond)

	snap := c.GetSnapshot()
	if snap.ConnectsTotal != 2 {
		t.Errorf("ConnectsTotal 期望 2，实际 %d", snap.ConnectsTotal)
	}
	if snap.ConnectsFailed != 1 {
		t.Errorf("ConnectsFailed 期望 1，实际 %d", snap.ConnectsFailed)
	}
	if snap.ConnectsTimedOut != 1 {
		t.Errorf("ConnectsTimedOut 期望 1，实际 %d", snap.ConnectsTimedOut)
	}
	if snap.AvgConnectLatency != 20*time.Millisecond {
		t.Errorf("AvgConnectLatency 期望 20ms，实际 %v", snap.AvgConnectLatency)
	}
}

func TestActiveAndDisconnects(t *testing.T) {
	c := NewCollector()

	c.AddActive(1)
	c.AddActive(1)
	c.AddActive(-1)
	c.IncDisconnects()

	snap := c.GetSnapshot()
	if snap.ActiveConns != 1 {
		t.Errorf("ActiveConns 期望 1，实际 %d", snap.ActiveConns)
	}
	if snap.DisconnectsTotal != 1 {
		t.Errorf("DisconnectsTotal 期望 1，实际 %d", snap.DisconnectsTotal)
	}
}

func TestSessionStats(t *testing.T) {
	c := NewCollector()

	c.IncSessionsAccepted()
	c.IncSessionsAccepted()
	c.IncSessionsDropped()

	snap := c.GetSnapshot()
	if snap.SessionsAccepted != 2 {
		t.Errorf("SessionsAccepted 期望 2，实际 %d", snap.SessionsAccepted)
	}
	if snap.SessionsDropped != 1 {
		t.Errorf("SessionsDropped 期望 1，实际 %d", snap.SessionsDropped)
	}
}

func TestOperationStats(t *testing.T) {
	c := NewCollector()

	c.IncOpsQueued()
	c.IncOpsQueued()
	c.IncOpsQueued()
	c.IncOpsCompleted()
	c.IncOpsRejected()
	c.IncSendFailed()

	snap := c.GetSnapshot()
	if snap.Pending() != 2 {
		t.Errorf("Pending 期望 2，实际 %d", snap.Pending())
	}
	if snap.OpsRejected != 1 {
		t.Errorf("OpsRejected 期望 1，实际 %d", snap.OpsRejected)
	}
	if snap.SendFailed != 1 {
		t.Errorf("SendFailed 期望 1，实际 %d", snap.SendFailed)
	}
}

func TestTrafficStats(t *testing.T) {
	c := NewCollector()

	c.AddBytesSent(100)
	c.AddBytesSent(28)
	c.AddBytesReceived(64)

	snap := c.GetSnapshot()
	if snap.BytesSent != 128 || snap.MsgsSent != 2 {
		t.Errorf("发送统计不正确: bytes=%d msgs=%d", snap.BytesSent, snap.MsgsSent)
	}
	if snap.BytesReceived != 64 || snap.MsgsRecv != 1 {
		t.Errorf("接收统计不正确: bytes=%d msgs=%d", snap.BytesReceived, snap.MsgsRecv)
	}
}

func TestCapabilityStats(t *testing.T) {
	c := NewCollector()

	c.IncProxyOK()
	c.IncProxyFailed()
	c.IncProxyFailed()
	c.IncSecureOK()
	c.IncSecureFailed()
	c.IncRDCCalls()
	c.IncRDCTimeouts()

	snap := c.GetSnapshot()
	if snap.ProxyOK != 1 || snap.ProxyFailed != 2 {
		t.Errorf("代理统计不正确: ok=%d failed=%d", snap.ProxyOK, snap.ProxyFailed)
	}
	if snap.SecureOK != 1 || snap.SecureFailed != 1 {
		t.Errorf("安全握手统计不正确: ok=%d failed=%d", snap.SecureOK, snap.SecureFailed)
	}
	if snap.RDCCalls != 1 || snap.RDCTimeouts != 1 {
		t.Errorf("RDC 统计不正确: calls=%d timeouts=%d", snap.RDCCalls, snap.RDCTimeouts)
	}
}

func TestReconnectStats(t *testing.T) {
	c := NewCollector()

	c.IncReconnectAttempts()
	c.IncReconnectAttempts()
	c.IncReconnectSuccess()
	c.IncReconnectGaveUp()

	snap := c.GetSnapshot()
	if snap.ReconnectAttempts != 2 {
		t.Errorf("ReconnectAttempts 期望 2，实际 %d", snap.ReconnectAttempts)
	}
	if snap.ReconnectSuccess != 1 {
		t.Errorf("ReconnectSuccess 期望 1，实际 %d", snap.ReconnectSuccess)
	}
	if snap.ReconnectGaveUp != 1 {
		t.Errorf("ReconnectGaveUp 期望 1，实际 %d", snap.ReconnectGaveUp)
	}
	if snap.ReconnectRate != 0.5 {
		t.Errorf("ReconnectRate 期望 0.5，实际 %f", snap.ReconnectRate)
	}
}

func TestReset(t *testing.T) {
	c := NewCollector()

	c.IncConnectsTotal()
	c.AddBytesSent(1000)
	c.AddActive(3)

	c.Reset()

	snap := c.GetSnapshot()
	if snap.ConnectsTotal != 0 {
		t.Errorf("Reset 后 ConnectsTotal 应为 0，实际 %d", snap.ConnectsTotal)
	}
	if snap.BytesSent != 0 || snap.MsgsSent != 0 {
		t.Errorf("Reset 后发送统计应为 0，实际 %d/%d", snap.BytesSent, snap.MsgsSent)
	}
	if snap.ActiveConns != 3 {
		t.Errorf("Reset 不应清除 ActiveConns，实际 %d", snap.ActiveConns)
	}
}

func TestUptime(t *testing.T) {
	c := NewCollector()
	time.Sleep(10 * time.Millisecond)

	snap := c.GetSnapshot()
	if snap.Uptime < 10*time.Millisecond {
		t.Errorf("Uptime 应该 >= 10ms，实际 %v", snap.Uptime)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.IncConnectsTotal()
			c.AddBytesSent(100)
			c.AddBytesReceived(200)
			c.IncOpsQueued()
		}()
	}

	wg.Wait()

	snap := c.GetSnapshot()
	if snap.ConnectsTotal != 100 {
		t.Errorf("并发后 ConnectsTotal 期望 100，实际 %d", snap.ConnectsTotal)
	}
	if snap.BytesSent != 10000 {
		t.Errorf("并发后 BytesSent 期望 10000，实际 %d", snap.BytesSent)
	}
}

func TestGlobalCollector(t *testing.T) {
	if Global == nil {
		t.Fatal("Global 收集器为 nil")
	}

	before := Global.GetSnapshot().ConnectsTotal
	Global.IncConnectsTotal()
	if Global.GetSnapshot().ConnectsTotal != before+1 {
		t.Error("Global 收集器无法正常工作")
	}
}
