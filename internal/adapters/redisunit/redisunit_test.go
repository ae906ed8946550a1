package redisunit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probeworks/apiprobe/internal/core"
	"github.com/probeworks/apiprobe/internal/data"
	"github.com/probeworks/apiprobe/internal/domain/model"
	"github.com/probeworks/apiprobe/internal/domain/vars"
)

type stubConnections struct {
	getRedisConfig func(ctx context.Context, id int64) (*model.RedisConfig, error)
}

func (s *stubConnections) GetRedisConfig(ctx context.Context, id int64) (*model.RedisConfig, error) {
	return s.getRedisConfig(ctx, id)
}

type stubGlobals struct {
	list   func(ctx context.Context) ([]*model.GlobalVariable, error)
	upsert func(ctx context.Context, params core.UpsertGlobalVariableParams) (*model.GlobalVariable, error)
}

func (s *stubGlobals) List(ctx context.Context) ([]*model.GlobalVariable, error) {
	if s.list == nil {
		return nil, nil
	}
	return s.list(ctx)
}

func (s *stubGlobals) Upsert(ctx context.Context, params core.UpsertGlobalVariableParams) (*model.GlobalVariable, error) {
	if s.upsert == nil {
		return &model.GlobalVariable{Name: params.Name, Value: params.Value}, nil
	}
	return s.upsert(ctx, params)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func miniredisConnections(mr *miniredis.Miniredis) *stubConnections {
	return &stubConnections{
		getRedisConfig: func(_ context.Context, id int64) (*model.RedisConfig, error) {
			if id != 1 {
				return nil, data.ErrRedisConfigNotFound
			}
			port, _ := strconv.Atoi(mr.Port())
			return &model.RedisConfig{ID: 1, Name: "test", Host: mr.Host(), Port: port}, nil
		},
	}
}

func seedClient(t *testing.T, mr *miniredis.Miniredis) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestGetTypedValues(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	ctx := context.Background()
	seed := seedClient(t, mr)
	require.NoError(t, seed.Set(ctx, "plain", "hello", 0).Err())
	require.NoError(t, seed.HSet(ctx, "h", "f1", "v1", "f2", "v2").Err())
	require.NoError(t, seed.RPush(ctx, "l", "a", "b").Err())
	require.NoError(t, seed.SAdd(ctx, "s", "only").Err())
	require.NoError(t, seed.ZAdd(ctx, "z",
		redis.Z{Score: 1.5, Member: "m1"},
		redis.Z{Score: 2, Member: "m2"}).Err())

	unit, err := NewUnit(UnitOptions{Connections: miniredisConnections(mr), Logger: testLogger()})
	require.NoError(t, err)

	t.Run("string", func(t *testing.T) {
		res := unit.Get(ctx, 1, "plain")
		require.True(t, res.Success)
		assert.Equal(t, "string", res.Type)
		assert.Equal(t, "hello", res.Value)
		assert.Equal(t, int64(-1), res.TTL)
	})

	t.Run("hash", func(t *testing.T) {
		res := unit.Get(ctx, 1, "h")
		require.True(t, res.Success)
		assert.Equal(t, "hash", res.Type)
		assert.Equal(t, map[string]string{"f1": "v1", "f2": "v2"}, res.Value)
	})

	t.Run("list", func(t *testing.T) {
		res := unit.Get(ctx, 1, "l")
		require.True(t, res.Success)
		assert.Equal(t, "list", res.Type)
		assert.Equal(t, []string{"a", "b"}, res.Value)
	})

	t.Run("set", func(t *testing.T) {
		res := unit.Get(ctx, 1, "s")
		require.True(t, res.Success)
		assert.Equal(t, "set", res.Type)
		assert.Equal(t, []string{"only"}, res.Value)
	})

	t.Run("zset members carry scores", func(t *testing.T) {
		res := unit.Get(ctx, 1, "z")
		require.True(t, res.Success)
		assert.Equal(t, "zset", res.Type)
		pairs, ok := res.Value.([]map[string]any)
		require.True(t, ok)
		require.Len(t, pairs, 2)
		assert.Equal(t, map[string]any{"member": "m1", "score": 1.5}, pairs[0])
		assert.Equal(t, map[string]any{"member": "m2", "score": 2.0}, pairs[1])
	})

	t.Run("missing key is a success with no value", func(t *testing.T) {
		res := unit.Get(ctx, 1, "nope")
		require.True(t, res.Success)
		assert.Equal(t, "none", res.Type)
		assert.Nil(t, res.Value)
		assert.Equal(t, int64(-2), res.TTL)
		assert.Equal(t, "Key [nope] 不存在", res.Message)
	})

	t.Run("ttl is reported in seconds", func(t *testing.T) {
		mr.SetTTL("plain", 30*time.Second)
		res := unit.Get(ctx, 1, "plain")
		require.True(t, res.Success)
		assert.Equal(t, int64(30), res.TTL)
		mr.SetTTL("plain", 0)
	})

	t.Run("unknown config id", func(t *testing.T) {
		res := unit.Get(ctx, 99, "plain")
		require.False(t, res.Success)
		assert.Equal(t, "Redis 配置 id=99 不存在", res.Error)
	})
}

func TestGetRaw(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	ctx := context.Background()
	unit, err := NewUnit(UnitOptions{Connections: miniredisConnections(mr), Logger: testLogger()})
	require.NoError(t, err)

	require.NoError(t, mr.Set("token", "abc123"))

	t.Run("existing key", func(t *testing.T) {
		val, err := unit.GetRaw(ctx, 1, "token")
		require.NoError(t, err)
		require.NotNil(t, val)
		assert.Equal(t, "abc123", *val)
	})

	t.Run("missing key", func(t *testing.T) {
		val, err := unit.GetRaw(ctx, 1, "ghost")
		require.NoError(t, err)
		assert.Nil(t, val)
	})

	t.Run("wrong type errors", func(t *testing.T) {
		seed := seedClient(t, mr)
		require.NoError(t, seed.HSet(ctx, "ahash", "f", "v").Err())
		_, err := unit.GetRaw(ctx, 1, "ahash")
		require.Error(t, err)
	})
}

func TestSetDeleteExpire(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	ctx := context.Background()
	unit, err := NewUnit(UnitOptions{Connections: miniredisConnections(mr), Logger: testLogger()})
	require.NoError(t, err)

	t.Run("set without ttl", func(t *testing.T) {
		res := unit.Set(ctx, 1, "k1", "v1", 0)
		require.True(t, res.Success)
		assert.Equal(t, "設置成功", res.Message)
		got, _ := mr.Get("k1")
		assert.Equal(t, "v1", got)
		assert.Equal(t, time.Duration(0), mr.TTL("k1"))
	})

	t.Run("set with ttl", func(t *testing.T) {
		res := unit.Set(ctx, 1, "k2", "v2", 60)
		require.True(t, res.Success)
		assert.Equal(t, 60*time.Second, mr.TTL("k2"))
	})

	t.Run("delete counts existing keys only", func(t *testing.T) {
		require.NoError(t, mr.Set("d1", "x"))
		require.NoError(t, mr.Set("d2", "y"))
		res := unit.Delete(ctx, 1, []string{"d1", "d2", "ghost"})
		require.True(t, res.Success)
		assert.Equal(t, int64(2), res.Deleted)
		assert.Equal(t, "刪除 2 個 Key", res.Message)
	})

	t.Run("ttl messages", func(t *testing.T) {
		require.NoError(t, mr.Set("t1", "x"))
		res := unit.TTL(ctx, 1, "t1")
		require.True(t, res.Success)
		assert.Equal(t, int64(-1), res.TTL)
		assert.Equal(t, "永久", res.Message)

		res = unit.TTL(ctx, 1, "ghost")
		require.True(t, res.Success)
		assert.Equal(t, int64(-2), res.TTL)
		assert.Equal(t, "不存在", res.Message)

		mr.SetTTL("t1", 45*time.Second)
		res = unit.TTL(ctx, 1, "t1")
		require.True(t, res.Success)
		assert.Equal(t, int64(45), res.TTL)
		assert.Equal(t, "45秒後過期", res.Message)
	})

	t.Run("expire", func(t *testing.T) {
		require.NoError(t, mr.Set("e1", "x"))
		res := unit.Expire(ctx, 1, "e1", 120)
		require.True(t, res.Success)
		assert.True(t, res.Applied)
		assert.Equal(t, "已設置 120秒 TTL", res.Message)
		assert.Equal(t, 120*time.Second, mr.TTL("e1"))

		res = unit.Expire(ctx, 1, "ghost", 120)
		require.True(t, res.Success)
		assert.False(t, res.Applied)
	})
}

func TestScan(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	ctx := context.Background()
	unit, err := NewUnit(UnitOptions{Connections: miniredisConnections(mr), Logger: testLogger()})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, mr.Set(fmt.Sprintf("sess:%d", i), "x"))
	}
	require.NoError(t, mr.Set("other", "x"))

	t.Run("pattern match sorted", func(t *testing.T) {
		res := unit.Scan(ctx, 1, "sess:*", 100)
		require.True(t, res.Success)
		assert.Equal(t, 5, res.Total)
		assert.Equal(t, []string{"sess:0", "sess:1", "sess:2", "sess:3", "sess:4"}, res.Keys)
	})

	t.Run("default pattern matches everything", func(t *testing.T) {
		res := unit.Scan(ctx, 1, "", 0)
		require.True(t, res.Success)
		assert.Equal(t, "*", res.Pattern)
		assert.Equal(t, 6, res.Total)
	})

	t.Run("no matches", func(t *testing.T) {
		res := unit.Scan(ctx, 1, "missing:*", 100)
		require.True(t, res.Success)
		assert.Equal(t, 0, res.Total)
		assert.Empty(t, res.Keys)
	})
}

func TestFetchCaptcha(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	ctx := context.Background()

	newUnit := func(t *testing.T, globals *stubGlobals, store *vars.Store) *Unit {
		t.Helper()
		unit, err := NewUnit(UnitOptions{
			Connections: miniredisConnections(mr),
			Globals:     globals,
			Vars:        store,
			Logger:      testLogger(),
		})
		require.NoError(t, err)
		return unit
	}

	t.Run("plain string value", func(t *testing.T) {
		require.NoError(t, mr.Set("captcha:13800000000", "827364"))
		mr.SetTTL("captcha:13800000000", 300*time.Second)

		var upserted core.UpsertGlobalVariableParams
		globals := &stubGlobals{
			upsert: func(_ context.Context, params core.UpsertGlobalVariableParams) (*model.GlobalVariable, error) {
				upserted = params
				return &model.GlobalVariable{Name: params.Name, Value: params.Value}, nil
			},
		}
		store := vars.NewStore()
		unit := newUnit(t, globals, store)

		res := unit.FetchCaptcha(ctx, FetchCaptchaParams{
			RedisConfigID: 1,
			Key:           "captcha:13800000000",
			VarName:       "sms_code",
		})
		require.True(t, res.Success, res.Error)
		assert.Equal(t, "827364", res.ExtractedValue)
		assert.Equal(t, int64(300), res.TTL)
		assert.Equal(t, "已獲取並存入變量 {{ sms_code }}", res.Message)

		assert.Equal(t, "sms_code", upserted.Name)
		assert.Equal(t, "827364", upserted.Value)
		assert.Equal(t, model.VarTypeString, upserted.VarType)
		assert.Equal(t, "Redis 驗證碼 key=captcha:13800000000", upserted.Description)

		runtime := store.Runtime()
		assert.Equal(t, "827364", runtime["sms_code"])
	})

	t.Run("key placeholders resolve from globals and runtime", func(t *testing.T) {
		require.NoError(t, mr.Set("captcha:13911112222", "555"))

		globals := &stubGlobals{
			list: func(context.Context) ([]*model.GlobalVariable, error) {
				return []*model.GlobalVariable{{Name: "phone", Value: "13900000000"}}, nil
			},
		}
		store := vars.NewStore()
		store.Set("phone", "13911112222")
		unit := newUnit(t, globals, store)

		res := unit.FetchCaptcha(ctx, FetchCaptchaParams{
			RedisConfigID: 1,
			Key:           "captcha:{{phone}}",
			VarName:       "code",
		})
		require.True(t, res.Success, res.Error)
		assert.Equal(t, "captcha:13911112222", res.Key)
	})

	t.Run("json field extraction", func(t *testing.T) {
		require.NoError(t, mr.Set("captcha:json", `{"code":"9988","sent_at":"now"}`))
		store := vars.NewStore()
		unit := newUnit(t, &stubGlobals{}, store)

		res := unit.FetchCaptcha(ctx, FetchCaptchaParams{
			RedisConfigID: 1,
			Key:           "captcha:json",
			VarName:       "code",
			ExtractField:  "code",
		})
		require.True(t, res.Success, res.Error)
		assert.Equal(t, "9988", res.ExtractedValue)
		assert.Equal(t, `{"code":"9988","sent_at":"now"}`, res.RawValue)
	})

	t.Run("missing json field", func(t *testing.T) {
		require.NoError(t, mr.Set("captcha:json2", `{"code":"9988"}`))
		unit := newUnit(t, &stubGlobals{}, vars.NewStore())

		res := unit.FetchCaptcha(ctx, FetchCaptchaParams{
			RedisConfigID: 1,
			Key:           "captcha:json2",
			VarName:       "code",
			ExtractField:  "token",
		})
		require.False(t, res.Success)
		assert.Equal(t, `JSON 字段 [token] 不存在，原始值: {"code":"9988"}`, res.Error)
	})

	t.Run("non json value with extract field passes through", func(t *testing.T) {
		require.NoError(t, mr.Set("captcha:raw", "not-json"))
		unit := newUnit(t, &stubGlobals{}, vars.NewStore())

		res := unit.FetchCaptcha(ctx, FetchCaptchaParams{
			RedisConfigID: 1,
			Key:           "captcha:raw",
			VarName:       "code",
			ExtractField:  "code",
		})
		require.True(t, res.Success, res.Error)
		assert.Equal(t, "not-json", res.ExtractedValue)
	})

	t.Run("hash value field extraction", func(t *testing.T) {
		seed := seedClient(t, mr)
		require.NoError(t, seed.HSet(ctx, "captcha:hash", "code", "4321").Err())
		unit := newUnit(t, &stubGlobals{}, vars.NewStore())

		res := unit.FetchCaptcha(ctx, FetchCaptchaParams{
			RedisConfigID: 1,
			Key:           "captcha:hash",
			VarName:       "code",
			ExtractField:  "code",
		})
		require.True(t, res.Success, res.Error)
		assert.Equal(t, "4321", res.ExtractedValue)
	})

	t.Run("expired key", func(t *testing.T) {
		unit := newUnit(t, &stubGlobals{}, vars.NewStore())

		res := unit.FetchCaptcha(ctx, FetchCaptchaParams{
			RedisConfigID: 1,
			Key:           "captcha:gone",
			VarName:       "code",
		})
		require.False(t, res.Success)
		assert.Equal(t, "Key [captcha:gone] 不存在或已過期", res.Error)
	})

	t.Run("missing config", func(t *testing.T) {
		unit := newUnit(t, &stubGlobals{}, vars.NewStore())

		res := unit.FetchCaptcha(ctx, FetchCaptchaParams{
			RedisConfigID: 7,
			Key:           "captcha:x",
			VarName:       "code",
		})
		require.False(t, res.Success)
		assert.Equal(t, "Redis 配置 id=7 不存在", res.Error)
	})
}
