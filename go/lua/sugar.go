package lua

// helpers available to every hook script
var sugarRc = `
getmetatable("").__mod = func(a, b)
    if type(b) == 'table' then
        return string.format(a, unpack(b))
    end
    return string.format(a, b)
end

func hex(n) return '0x%x' % n end
func ord(s) return string.byte(s, 1) end
func chr(n) return string.char(n) end

-- bp(addr) halts execution at addr, returning the hook id
func bp(addr, name)
    return hooks.add(EVENT.EXEC, WHEN.BEFORE, {
        name = name,
        filter = addr,
        group = 'breakpoints',
        callbacks = {func() return ACTION.HALT end},
    })
end
`
