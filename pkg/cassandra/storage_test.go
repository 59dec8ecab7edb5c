package cassandra

import (
	"context"
	"io/ioutil"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestStorage_Increment(t *testing.T) {
	testCases := []struct {
		desc    string
		setup   func(r *rowsMock)
		want    int64
		wantErr bool
	}{
		{
			desc: "absent key is created with 1",
			setup: func(r *rowsMock) {
				r.On("read", mock.Anything, "counter").Return(int64(0), false, nil).Once()
				r.On("insert", mock.Anything, "counter").Return(true, nil).Once()
			},
			want: 1,
		},
		{
			desc: "existing value is swapped for the next one",
			setup: func(r *rowsMock) {
				r.On("read", mock.Anything, "counter").Return(int64(41), true, nil).Once()
				r.On("swap", mock.Anything, "counter", int64(41), int64(42)).Return(true, nil).Once()
			},
			want: 42,
		},
		{
			desc: "lost race re-reads and wins",
			setup: func(r *rowsMock) {
				r.On("read", mock.Anything, "counter").Return(int64(5), true, nil).Once()
				r.On("swap", mock.Anything, "counter", int64(5), int64(6)).Return(false, nil).Once()
				r.On("read", mock.Anything, "counter").Return(int64(6), true, nil).Once()
				r.On("swap", mock.Anything, "counter", int64(6), int64(7)).Return(true, nil).Once()
			},
			want: 7,
		},
		{
			desc: "concurrent insert falls back to swap",
			setup: func(r *rowsMock) {
				r.On("read", mock.Anything, "counter").Return(int64(0), false, nil).Once()
				r.On("insert", mock.Anything, "counter").Return(false, nil).Once()
				r.On("read", mock.Anything, "counter").Return(int64(1), true, nil).Once()
				r.On("swap", mock.Anything, "counter", int64(1), int64(2)).Return(true, nil).Once()
			},
			want: 2,
		},
		{
			desc: "read failure",
			setup: func(r *rowsMock) {
				r.On("read", mock.Anything, "counter").Return(int64(0), false, errors.New("no hosts available")).Once()
			},
			wantErr: true,
		},
		{
			desc: "swap failure",
			setup: func(r *rowsMock) {
				r.On("read", mock.Anything, "counter").Return(int64(3), true, nil).Once()
				r.On("swap", mock.Anything, "counter", int64(3), int64(4)).Return(false, errors.New("write timeout")).Once()
			},
			wantErr: true,
		},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			rows := new(rowsMock)
			tC.setup(rows)
			s := newTestStorage(rows, defaultMaxAttempts)

			got, err := s.Increment(context.Background(), "counter")

			if tC.wantErr {
				assert.Error(t, err)
				assert.NotEqual(t, errContention, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tC.want, got)
			}
			rows.AssertExpectations(t)
		})
	}
}

func TestStorage_Increment_Contention(t *testing.T) {
	rows := new(rowsMock)
	rows.On("read", mock.Anything, "counter").Return(int64(5), true, nil)
	rows.On("swap", mock.Anything, "counter", int64(5), int64(6)).Return(false, nil)
	s := newTestStorage(rows, 3)

	_, err := s.Increment(context.Background(), "counter")

	assert.Equal(t, errContention, err)
	rows.AssertNumberOfCalls(t, "read", 3)
	rows.AssertNumberOfCalls(t, "swap", 3)
}

func newTestStorage(rows counterRows, maxAttempts int) *Storage {
	logger := logrus.New()
	logger.Out = ioutil.Discard

	return &Storage{
		rows:        rows,
		logger:      logger,
		maxAttempts: maxAttempts,
	}
}

type rowsMock struct {
	mock.Mock
}

func (r *rowsMock) read(ctx context.Context, key string) (int64, bool, error) {
	args := r.Called(ctx, key)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

func (r *rowsMock) insert(ctx context.Context, key string) (bool, error) {
	args := r.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (r *rowsMock) swap(ctx context.Context, key string, old, new int64) (bool, error) {
	args := r.Called(ctx, key, old, new)
	return args.Bool(0), args.Error(1)
}
