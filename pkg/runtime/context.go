package runtime

import (
	"bytes"
	"fmt"
	"math/bits"

	"github.com/fortiblox/x1-lockup/internal/types"
	"github.com/fortiblox/x1-lockup/pkg/accounts"
	"github.com/fortiblox/x1-lockup/pkg/pda"
	"github.com/fortiblox/x1-lockup/pkg/svm"
)

// accountState is the working copy of an account during a transaction.
type accountState struct {
	owner      types.Pubkey
	lamports   uint64
	data       []byte
	executable bool
	rentEpoch  uint64
}

func (s accountState) clone() accountState {
	s.data = append([]byte(nil), s.data...)
	return s
}

func (s accountState) equal(o accountState) bool {
	return s.owner == o.owner &&
		s.lamports == o.lamports &&
		s.executable == o.executable &&
		s.rentEpoch == o.rentEpoch &&
		bytes.Equal(s.data, o.data)
}

// loadedAccount is an account referenced by the transaction.
type loadedAccount struct {
	key        types.Pubkey
	original   accountState
	state      accountState
	isSigner   bool
	isWritable bool
}

// newLoadedAccount wraps a stored account. Missing accounts load as empty
// accounts owned by the system program.
func newLoadedAccount(key types.Pubkey, stored *accounts.Account) *loadedAccount {
	var state accountState
	if stored != nil {
		state = accountState{
			owner:      stored.Owner,
			lamports:   stored.Lamports,
			data:       stored.Data,
			executable: stored.Executable,
			rentEpoch:  stored.RentEpoch,
		}
	}
	return &loadedAccount{
		key:      key,
		original: state.clone(),
		state:    state.clone(),
	}
}

// transactionContext holds the working state of one transaction.
type transactionContext struct {
	runtime  *Runtime
	accounts map[types.Pubkey]*loadedAccount
	order    []types.Pubkey
	meter    *svm.ComputeMeter
	now      int64
	logs     *[]string
}

func (t *transactionContext) log(msg string) {
	*t.logs = append(*t.logs, msg)
}

// executeTopLevel runs an instruction of the transaction itself. Account
// privileges are those of the transaction.
func (t *transactionContext) executeTopLevel(ix svm.Instruction) error {
	frame := t.newFrame(ix.ProgramID, ix.Accounts, 1, func(meta svm.AccountMeta) (bool, bool) {
		acct := t.accounts[meta.Pubkey]
		return acct.isSigner, acct.isWritable
	})
	return t.run(frame, ix.Data)
}

// newFrame builds the account view of one program invocation. Accounts that
// appear more than once share a single AccountInfo.
func (t *transactionContext) newFrame(
	programID types.Pubkey,
	metas []svm.AccountMeta,
	depth int,
	privileges func(svm.AccountMeta) (isSigner, isWritable bool),
) *invokeContext {
	c := &invokeContext{
		tx:        t,
		programID: programID,
		depth:     depth,
		positions: make([]*svm.AccountInfo, len(metas)),
		byKey:     make(map[types.Pubkey]*svm.AccountInfo, len(metas)),
		pre:       make(map[types.Pubkey]accountState, len(metas)),
	}

	for i, meta := range metas {
		isSigner, isWritable := privileges(meta)

		info, ok := c.byKey[meta.Pubkey]
		if !ok {
			state := t.accounts[meta.Pubkey].state
			info = &svm.AccountInfo{Key: meta.Pubkey}
			setInfo(info, state)
			c.byKey[meta.Pubkey] = info
			c.unique = append(c.unique, info)
			c.pre[meta.Pubkey] = state.clone()
		}
		info.IsSigner = info.IsSigner || isSigner
		info.IsWritable = info.IsWritable || isWritable
		c.positions[i] = info
	}

	return c
}

// run invokes the frame's program and, on success, verifies and commits its
// changes to the transaction state.
func (t *transactionContext) run(c *invokeContext, data []byte) error {
	program, ok := t.runtime.programs[c.programID]
	if !ok {
		t.log(fmt.Sprintf("Program %s is not supported", c.programID))
		return fmt.Errorf("%w: %s", svm.ErrUnsupportedProgramID, c.programID)
	}

	t.log(fmt.Sprintf("Program %s invoke [%d]", c.programID, c.depth))

	err := program.Process(c, data)
	if err == nil {
		err = c.verify()
	}
	if err != nil {
		t.log(fmt.Sprintf("Program %s failed: %v", c.programID, err))
		return err
	}

	c.commit()
	t.log(fmt.Sprintf("Program %s success", c.programID))
	return nil
}

// updates returns the writes of a successful transaction.
func (t *transactionContext) updates() []accounts.Update {
	var updates []accounts.Update
	for _, key := range t.order {
		acct := t.accounts[key]
		if !acct.isWritable || acct.state.equal(acct.original) {
			continue
		}
		updates = append(updates, accounts.Update{
			Pubkey: key,
			Account: &accounts.Account{
				Lamports:   acct.state.lamports,
				Data:       acct.state.data,
				Owner:      acct.state.owner,
				Executable: acct.state.executable,
				RentEpoch:  acct.state.rentEpoch,
			},
		})
	}
	return updates
}

func setInfo(info *svm.AccountInfo, state accountState) {
	info.Owner = state.owner
	info.Lamports = state.lamports
	info.Data = append([]byte(nil), state.data...)
	info.Executable = state.executable
	info.RentEpoch = state.rentEpoch
}

func stateOf(info *svm.AccountInfo) accountState {
	return accountState{
		owner:      info.Owner,
		lamports:   info.Lamports,
		data:       append([]byte(nil), info.Data...),
		executable: info.Executable,
		rentEpoch:  info.RentEpoch,
	}
}

// invokeContext is the svm.InvokeContext of one program invocation.
type invokeContext struct {
	tx        *transactionContext
	programID types.Pubkey
	depth     int

	positions []*svm.AccountInfo
	unique    []*svm.AccountInfo
	byKey     map[types.Pubkey]*svm.AccountInfo

	// pre holds each account as last verified.
	pre map[types.Pubkey]accountState
}

var _ svm.InvokeContext = (*invokeContext)(nil)

func (c *invokeContext) ProgramID() types.Pubkey {
	return c.programID
}

func (c *invokeContext) AccountCount() int {
	return len(c.positions)
}

func (c *invokeContext) GetAccount(index int) (*svm.AccountInfo, error) {
	if index < 0 || index >= len(c.positions) {
		return nil, svm.ErrNotEnoughAccountKeys
	}
	return c.positions[index], nil
}

func (c *invokeContext) UnixTimestamp() int64 {
	return c.tx.now
}

func (c *invokeContext) GetRentMinimum(dataLen uint64) uint64 {
	return svm.RentMinimum(dataLen)
}

func (c *invokeContext) ConsumeCU(cost uint64) error {
	return c.tx.meter.Consume(cost)
}

func (c *invokeContext) Log(msg string) {
	c.tx.log("Program log: " + msg)
}

// Invoke calls another program with accounts of this invocation. The callee
// may receive an account as signer if this invocation holds its signature or
// if one of signers derives it from this program's id.
func (c *invokeContext) Invoke(ix svm.Instruction, signers ...pda.SignerSeeds) error {
	if c.depth >= c.tx.runtime.config.MaxInvokeDepth {
		return svm.ErrCallDepth
	}
	if err := c.ConsumeCU(svm.CUInvokeBase); err != nil {
		return err
	}

	derived := make(map[types.Pubkey]bool, len(signers))
	for _, seeds := range signers {
		if err := c.ConsumeCU(svm.CUCreateProgramAddress); err != nil {
			return err
		}
		addr, err := seeds.Address(c.programID)
		if err != nil {
			return fmt.Errorf("%w: %v", svm.ErrInvalidSeeds, err)
		}
		derived[addr] = true
	}

	for _, meta := range ix.Accounts {
		caller, ok := c.byKey[meta.Pubkey]
		if !ok {
			return fmt.Errorf("%w: %s", svm.ErrMissingAccount, meta.Pubkey)
		}
		if meta.IsWritable && !caller.IsWritable {
			c.Log(fmt.Sprintf("%s's writable privilege escalated", meta.Pubkey))
			return svm.ErrPrivilegeEscalation
		}
		if meta.IsSigner && !caller.IsSigner && !derived[meta.Pubkey] {
			c.Log(fmt.Sprintf("%s's signer privilege escalated", meta.Pubkey))
			return svm.ErrPrivilegeEscalation
		}
	}

	// The callee starts from the caller's verified changes.
	if err := c.verify(); err != nil {
		return err
	}
	c.commit()

	callee := c.tx.newFrame(ix.ProgramID, ix.Accounts, c.depth+1, func(meta svm.AccountMeta) (bool, bool) {
		return meta.IsSigner, meta.IsWritable
	})
	if err := c.tx.run(callee, ix.Data); err != nil {
		return err
	}

	c.refresh()
	return nil
}

// verify checks the changes made since the last verification.
func (c *invokeContext) verify() error {
	var preHi, preLo, postHi, postLo, carry uint64

	for _, info := range c.unique {
		pre := c.pre[info.Key]
		if err := verifyAccount(c.programID, pre, info); err != nil {
			return fmt.Errorf("%w: %s", err, info.Key)
		}

		preLo, carry = bits.Add64(preLo, pre.lamports, 0)
		preHi += carry
		postLo, carry = bits.Add64(postLo, info.Lamports, 0)
		postHi += carry
	}

	if preHi != postHi || preLo != postLo {
		return svm.ErrUnbalancedInstruction
	}
	return nil
}

func verifyAccount(programID types.Pubkey, pre accountState, post *svm.AccountInfo) error {
	if pre.owner != post.Owner {
		if pre.owner != programID || !post.IsWritable || !isZeroed(post.Data) {
			return svm.ErrModifiedProgramID
		}
	}
	if pre.executable != post.Executable {
		return svm.ErrExecutableModified
	}
	if !bytes.Equal(pre.data, post.Data) {
		if !post.IsWritable {
			return svm.ErrReadonlyDataModified
		}
		if pre.owner != programID {
			return svm.ErrExternalAccountDataModified
		}
	}
	if pre.lamports != post.Lamports {
		if !post.IsWritable {
			return svm.ErrReadonlyLamportChange
		}
		if post.Lamports < pre.lamports && pre.owner != programID {
			return svm.ErrExternalAccountLamportSpend
		}
	}
	return nil
}

func isZeroed(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}

// commit writes the frame's accounts to the transaction state.
func (c *invokeContext) commit() {
	for _, info := range c.unique {
		state := stateOf(info)
		c.tx.accounts[info.Key].state = state
		c.pre[info.Key] = state.clone()
	}
}

// refresh reloads the frame's accounts from the transaction state, in place,
// so AccountInfo pointers held by the program stay valid.
func (c *invokeContext) refresh() {
	for _, info := range c.unique {
		state := c.tx.accounts[info.Key].state
		setInfo(info, state)
		c.pre[info.Key] = state.clone()
	}
}
